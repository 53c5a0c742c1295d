// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestListenPortValidate(t *testing.T) {
	t.Parallel()

	for _, p := range []ListenPort{0, 1, 2222, 65535} {
		if err := p.Validate(); err != nil {
			t.Errorf("ListenPort(%d).Validate() = %v, want nil", p, err)
		}
	}
	for _, p := range []ListenPort{-1, 65536} {
		err := p.Validate()
		if !errors.Is(err, ErrInvalidListenPort) {
			t.Errorf("ListenPort(%d).Validate() = %v, want ErrInvalidListenPort", p, err)
		}
	}
}

func TestParsePort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Port
		wantErr bool
	}{
		{in: "22", want: 22},
		{in: "2222", want: 2222},
		{in: "0", wantErr: true},
		{in: "70000", wantErr: true},
		{in: "ssh", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePort(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPort) {
					t.Fatalf("ParsePort(%q) error = %v, want ErrInvalidPort", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePort(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePort(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
