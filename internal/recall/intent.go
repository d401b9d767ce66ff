package recall

import "strings"

// Intent tags assigned to a query by the fixed rule table.
const (
	IntentIdentity     = "identity"
	IntentRelationship = "relationship"
	IntentProcedural   = "procedural"
	IntentPreference   = "preference"
	IntentFactual      = "factual"
	IntentEmotional    = "emotional"
	IntentGeneral      = "general"
)

// intentRules maps query substrings to intent tags. Order is irrelevant;
// all matching tags are collected.
var intentRules = []struct {
	tag      string
	patterns []string
}{
	{IntentIdentity, []string{"who am i", "who are you", "my name", "your name", "我是谁", "你是谁", "我叫什么", "身份"}},
	{IntentRelationship, []string{"friend", "family", "partner", "relationship", "together", "朋友", "家人", "关系", "我们"}},
	{IntentProcedural, []string{"how to", "how do i", "how can i", "steps", "guide", "怎么", "如何", "步骤", "教我"}},
	{IntentPreference, []string{"like", "prefer", "favorite", "favourite", "hate", "dislike", "喜欢", "偏好", "讨厌", "最爱"}},
	{IntentFactual, []string{"what is", "what was", "when", "where", "which", "是什么", "什么时候", "在哪", "哪个"}},
	{IntentEmotional, []string{"feel", "feeling", "sad", "happy", "angry", "afraid", "mood", "心情", "感觉", "难过", "开心", "生气"}},
}

// TagIntents classifies a query against the rule table. A query matching no
// rule yields {general}.
func TagIntents(query string) []string {
	lower := strings.ToLower(query)
	var tags []string
	for _, rule := range intentRules {
		for _, p := range rule.patterns {
			if strings.Contains(lower, p) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	if len(tags) == 0 {
		return []string{IntentGeneral}
	}
	return tags
}
