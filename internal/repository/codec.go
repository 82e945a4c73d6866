package repository

import (
	"time"

	"telecare-calling/internal/domain"
)

// Field decoding helpers. Snapshot data arrives as map[string]any with
// store-native scalar types (Firestore returns int64 and time.Time); decode
// tolerantly rather than assuming one backend.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func asTimePtr(v any) *time.Time {
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}

func asPair(v any) [2]string {
	var out [2]string
	arr, _ := v.([]any)
	for i := 0; i < len(arr) && i < 2; i++ {
		out[i] = asString(arr[i])
	}
	return out
}

func asDescription(v any) *domain.SessionDescription {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &domain.SessionDescription{
		Type: asString(m["type"]),
		SDP:  asString(m["sdp"]),
	}
}

func descriptionToDoc(d *domain.SessionDescription) map[string]any {
	return map[string]any{"type": d.Type, "sdp": d.SDP}
}

func asMessages(v any) []domain.ChatMessage {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]domain.ChatMessage, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, domain.ChatMessage{
			Sender:  asString(m["sender"]),
			Content: asString(m["content"]),
			SentAt:  asTime(m["sentAt"]),
		})
	}
	return out
}

func messageToDoc(m domain.ChatMessage) map[string]any {
	return map[string]any{
		"sender":  m.Sender,
		"content": m.Content,
		"sentAt":  m.SentAt,
	}
}

func pairToDoc(p [2]string) []any {
	return []any{p[0], p[1]}
}
