package monitor

import (
	"errors"
	"strings"
	"testing"
)

const url = "http://localhost:15672/#/queues"

func TestOffer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantOpen bool
	}{
		{"yes", "y\n", true},
		{"upper case yes", "Y\n", true},
		{"no", "n\n", false},
		{"anything else", "yes please\n", false},
		{"end of input", "", false},
		{"no newline", "y", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			var opened string

			got, err := Offer(strings.NewReader(tt.input), &out, url, func(u string) error {
				opened = u
				return nil
			})
			if err != nil {
				t.Fatalf("Offer() error = %v", err)
			}
			if got != tt.wantOpen {
				t.Errorf("Offer() = %v, want %v", got, tt.wantOpen)
			}
			if tt.wantOpen && opened != url {
				t.Errorf("opened %q, want %q", opened, url)
			}
			if !tt.wantOpen && opened != "" {
				t.Errorf("should not open, opened %q", opened)
			}
			if !strings.HasPrefix(out.String(), Question) {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

func TestOffer_OpenFailure(t *testing.T) {
	boom := errors.New("no browser")
	_, err := Offer(strings.NewReader("y\n"), &strings.Builder{}, url, func(string) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Offer() error = %v, want %v", err, boom)
	}
}
