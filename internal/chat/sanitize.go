package chat

import "github.com/firebase/genkit/go/ai"

// sanitizeResponseMessages strips incomplete tool interactions from a
// response transcript before persistence: tool requests that never got a
// matching response (a turn cap or failure cut them off) and messages left
// with no content. Complete request/response pairs pass through untouched.
func sanitizeResponseMessages(messages []*ai.Message) []*ai.Message {
	answered := make(map[string]bool)
	for _, m := range messages {
		for _, p := range m.Content {
			if p.Kind == ai.PartToolResponse && p.ToolResponse != nil {
				answered[toolKey(p.ToolResponse.Ref, p.ToolResponse.Name)] = true
			}
		}
	}

	var out []*ai.Message
	for _, m := range messages {
		var parts []*ai.Part
		for _, p := range m.Content {
			switch p.Kind {
			case ai.PartToolRequest:
				if p.ToolRequest != nil && answered[toolKey(p.ToolRequest.Ref, p.ToolRequest.Name)] {
					parts = append(parts, p)
				}
			case ai.PartText:
				if p.Text != "" {
					parts = append(parts, p)
				}
			default:
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			out = append(out, &ai.Message{Role: m.Role, Metadata: m.Metadata, Content: parts})
		}
	}
	return out
}

// toolKey matches requests to responses by ref when present, falling back
// to the tool name.
func toolKey(ref, name string) string {
	if ref != "" {
		return ref
	}
	return name
}
