package firmware

// Text is an optionally present string decoded from a store.
// The zero value means the field was not found.
type Text struct {
	Value string
	Valid bool
}

// NewText returns a present Text holding s.
func NewText(s string) Text {
	return Text{Value: s, Valid: true}
}

// String returns the value, or "N/A" when the field is absent.
func (t Text) String() string {
	if !t.Valid {
		return "N/A"
	}
	return t.Value
}

// Or returns the value, or fallback when the field is absent.
func (t Text) Or(fallback string) string {
	if !t.Valid {
		return fallback
	}
	return t.Value
}
