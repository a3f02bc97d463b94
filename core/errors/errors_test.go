package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrUnsupported", ErrUnsupported, "unsupported"},
		{"ErrInvalidState", ErrInvalidState, "invalid state"},
		{"ErrIO", ErrIO, "i/o failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("got %q, want %q", tt.err.Error(), tt.msg)
			}
		})
	}
}

func TestArgumentError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ArgumentError
		wantMsg string
	}{
		{
			name:    "with op",
			err:     &ArgumentError{Op: "open", Field: "source", Message: "unsupported source object type"},
			wantMsg: "open: unsupported source object type",
		},
		{
			name:    "without op",
			err:     &ArgumentError{Message: "missing path"},
			wantMsg: "missing path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidArgument) {
				t.Errorf("errors.Is(%v, ErrInvalidArgument) = false", tt.err)
			}
		})
	}
}

func TestUnsupportedError(t *testing.T) {
	tests := []struct {
		name    string
		err     *UnsupportedError
		wantMsg string
	}{
		{
			name:    "full context",
			err:     &UnsupportedError{Op: "open", Feature: "mode", Value: "w"},
			wantMsg: "open: unsupported mode: w",
		},
		{
			name:    "feature only",
			err:     &UnsupportedError{Feature: "format version"},
			wantMsg: "unsupported format version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrUnsupported) {
				t.Errorf("errors.Is(%v, ErrUnsupported) = false", tt.err)
			}
		})
	}
}

func TestStateError(t *testing.T) {
	err := NewState("close", "not open")
	if got, want := err.Error(), "close: not open"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Error("StateError should match ErrInvalidState")
	}
	if errors.Is(err, ErrIO) {
		t.Error("StateError should not match ErrIO")
	}
}

func TestIOError(t *testing.T) {
	baseErr := fmt.Errorf("permission denied")

	tests := []struct {
		name    string
		err     *IOError
		wantMsg string
	}{
		{
			name:    "with path",
			err:     &IOError{Operation: "read", Path: "/tmp/Windows.edb", Err: baseErr},
			wantMsg: "failed to read /tmp/Windows.edb: permission denied",
		},
		{
			name:    "without path",
			err:     &IOError{Operation: "read", Err: baseErr},
			wantMsg: "failed to read: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrIO) {
				t.Error("IOError should match ErrIO")
			}
			if !errors.Is(tt.err, baseErr) {
				t.Error("IOError should match its cause")
			}
		})
	}

	t.Run("cause stays detectable", func(t *testing.T) {
		err := NewIO("open", "missing.edb", fs.ErrNotExist)
		if !errors.Is(err, fs.ErrNotExist) {
			t.Error("expected fs.ErrNotExist through IOError")
		}
	})

	t.Run("nil cause", func(t *testing.T) {
		err := &IOError{Operation: "read"}
		if !errors.Is(err, ErrIO) {
			t.Error("IOError without cause should still match ErrIO")
		}
	})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"foreign", fmt.Errorf("boom"), KindUnknown},
		{"argument", NewArgument("open", "source", "unsupported source object type"), KindInvalidArgument},
		{"unsupported", NewUnsupported("open", "mode", "w"), KindUnsupportedOption},
		{"state", NewState("open", "already open"), KindInvalidState},
		{"io", NewIO("read", "", fmt.Errorf("short read")), KindIOFailure},
		{"wrapped state", fmt.Errorf("esedb: %w", NewState("close", "not open")), KindInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		KindUnknown:           "Unknown",
		KindInvalidArgument:   "InvalidArgument",
		KindUnsupportedOption: "UnsupportedOption",
		KindInvalidState:      "InvalidState",
		KindIOFailure:         "IOFailure",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
