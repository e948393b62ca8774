package pubsub

// EventInvalidate announces that a query key was invalidated by a mutation
const EventInvalidate = "query:invalidate"

// InvalidateEvent builds an invalidation announcement for key, tagged with
// the id of the instance that performed the mutation.
func InvalidateEvent(origin string, key []string) Event {
	parts := make([]interface{}, len(key))
	for i, p := range key {
		parts[i] = p
	}
	return Event{
		Type: EventInvalidate,
		Payload: map[string]interface{}{
			"origin": origin,
			"key":    parts,
		},
	}
}

// Invalidation decodes an invalidation announcement. ok is false for other
// event types or malformed payloads. Events decoded from JSON carry the key
// as []interface{}, local events may carry []string.
func (e Event) Invalidation() (key []string, origin string, ok bool) {
	if e.Type != EventInvalidate || e.Payload == nil {
		return nil, "", false
	}

	origin, _ = e.Payload["origin"].(string)

	switch raw := e.Payload["key"].(type) {
	case []string:
		key = append([]string(nil), raw...)
	case []interface{}:
		key = make([]string, 0, len(raw))
		for _, p := range raw {
			s, isString := p.(string)
			if !isString {
				return nil, "", false
			}
			key = append(key, s)
		}
	default:
		return nil, "", false
	}
	return key, origin, true
}
