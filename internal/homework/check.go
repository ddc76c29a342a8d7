package homework

import (
	"encoding/json"
	"fmt"
	"math"
)

// Payload keys.
const (
	FieldHomeworks   = "homeworks"
	FieldCurrentDate = "current_date"
	FieldName        = "homework_name"
	FieldStatus      = "status"
)

// Response is a validated API answer.
type Response struct {
	// Homework is the most recent record, still undecoded. Valid only when Found.
	Homework any
	Found    bool
	// CurrentDate is the server timestamp the next query should start from.
	CurrentDate int64
}

// CheckResponse validates a decoded payload and extracts its most recent
// homework. An empty homework list is not an error: Found is false.
func CheckResponse(payload any) (Response, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return Response{}, wrongShape("response", payload, "object")
	}

	rawList, ok := m[FieldHomeworks]
	if !ok {
		return Response{}, &Error{Kind: WrongShape, Field: FieldHomeworks, Got: "missing", Want: "array"}
	}
	rawDate, ok := m[FieldCurrentDate]
	if !ok {
		return Response{}, &Error{Kind: WrongShape, Field: FieldCurrentDate, Got: "missing", Want: "integer"}
	}

	list, ok := rawList.([]any)
	if !ok {
		return Response{}, wrongShape(FieldHomeworks, rawList, "array")
	}
	date, ok := toUnix(rawDate)
	if !ok {
		return Response{}, wrongShape(FieldCurrentDate, rawDate, "integer")
	}
	// The date becomes the next from_date; 0 would read as "now" downstream.
	if date <= 0 {
		return Response{}, &Error{Kind: WrongShape, Field: FieldCurrentDate, Got: fmt.Sprint(date), Want: "positive integer"}
	}

	r := Response{CurrentDate: date}
	if len(list) > 0 {
		r.Homework = list[0]
		r.Found = true
	}
	return r, nil
}

// ParseStatus turns one homework record into the chat message.
func ParseStatus(homework any) (string, error) {
	m, ok := homework.(map[string]any)
	if !ok {
		return "", wrongShape("homework", homework, "object")
	}

	var status string
	switch s := m[FieldStatus].(type) {
	case string:
		status = s
	case nil:
	default:
		status = fmt.Sprint(s)
	}

	name, _ := m[FieldName].(string)
	if name == "" {
		return "", &Error{Kind: UnrecognizedStatus, Status: status}
	}
	verdict, ok := Verdict(Status(status))
	if !ok {
		return "", &Error{Kind: UnrecognizedStatus, Status: status}
	}
	return FormatMessage(name, verdict), nil
}

// FormatMessage renders a status change notification.
func FormatMessage(name, verdict string) string {
	return fmt.Sprintf(`Changed review status of "%s": %s`, name, verdict)
}

func toUnix(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	default:
		return 0, false
	}
}
