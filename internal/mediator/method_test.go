package mediator

import "testing"

func TestIsValidMethod(t *testing.T) {
	t.Parallel()

	cases := []struct {
		method string
		want   bool
	}{
		{"GET", true},
		{"POST", true},
		{"PATCH", true},
		{"CUSTOM-VERB", true},
		{"", false},
		{"GE T", false},
		{"GET\t", false},
		{"GET/1.1", false},
	}
	for _, c := range cases {
		if got := isValidMethod(c.method); got != c.want {
			t.Errorf("isValidMethod(%q) = %v, want %v", c.method, got, c.want)
		}
	}
}
