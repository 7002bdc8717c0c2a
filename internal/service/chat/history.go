package chat

import "github.com/zhouzirui/z-relay/backend/internal/model/chat"

// RetentionPolicy bounds stored history. It is derived once from configuration.
type RetentionPolicy struct {
	ScriptedPromptCount int
	MaxHistorySize      int
}

// NewRetentionPolicy builds the policy for k scripted prompts and a history cap.
func NewRetentionPolicy(scriptedPromptCount, maxHistorySize int) RetentionPolicy {
	return RetentionPolicy{ScriptedPromptCount: scriptedPromptCount, MaxHistorySize: maxHistorySize}
}

// ProtectedPrefixLength is the system turn plus one question/answer pair per
// scripted prompt.
func (p RetentionPolicy) ProtectedPrefixLength() int {
	return p.ScriptedPromptCount*2 + 1
}

// Apply returns history truncated under the policy. Histories at or below
// ProtectedPrefixLength+MaxHistorySize are returned unchanged.
//
// Operators keep only the last MaxHistorySize turns. Everyone else keeps the
// protected prefix verbatim followed by the last MaxHistorySize turns, so the
// retained set may exceed MaxHistorySize by the prefix length: onboarding
// context wins over raw recency.
//
// A non-positive MaxHistorySize disables slicing.
func (p RetentionPolicy) Apply(history []chat.Turn, isOperator bool) []chat.Turn {
	if p.MaxHistorySize <= 0 {
		return history
	}
	prefix := p.ProtectedPrefixLength()
	if len(history) <= prefix+p.MaxHistorySize {
		return history
	}

	tail := history[len(history)-p.MaxHistorySize:]
	if isOperator {
		return chat.CloneTurns(tail)
	}

	out := make([]chat.Turn, 0, prefix+p.MaxHistorySize)
	out = append(out, history[:prefix]...)
	out = append(out, tail...)
	return out
}

// TrimPrompt bounds a provider-bound prompt to the first turn plus the last
// sliceSize-1 turns once it reaches sliceSize turns. It always returns a copy;
// the stored history is never touched. A non-positive sliceSize disables it.
func TrimPrompt(turns []chat.Turn, sliceSize int) []chat.Turn {
	if sliceSize <= 0 || len(turns) < sliceSize {
		return chat.CloneTurns(turns)
	}

	out := make([]chat.Turn, 0, sliceSize)
	out = append(out, turns[0])
	if keep := sliceSize - 1; keep > 0 {
		out = append(out, turns[len(turns)-keep:]...)
	}
	return out
}
