package browser

import (
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://docs.python.org/3/tutorial/", false},
		{"http://example.com", false},
		{"file:///etc/passwd", true},
		{"javascript:alert(1)", true},
		{"ftp://example.com", true},
		{"https://", true},
		{"", true},
	}

	for _, tt := range tests {
		err := Validate(tt.url)
		if tt.wantErr && err == nil {
			t.Errorf("Validate(%q): expected error, got nil", tt.url)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("Validate(%q): unexpected error: %v", tt.url, err)
		}
	}
}

func TestOpenRejectsBeforeLaunching(t *testing.T) {
	if err := Open("javascript:alert(1)"); err == nil {
		t.Error("expected an error for a javascript URL")
	}
}

func TestCommand(t *testing.T) {
	const link = "https://realpython.com/python-for-loop/"
	tests := []struct {
		goos string
		name string
		args []string
	}{
		{"darwin", "open", []string{link}},
		{"linux", "xdg-open", []string{link}},
		{"freebsd", "xdg-open", []string{link}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", link}},
	}
	for _, tt := range tests {
		name, args := command(tt.goos, link)
		if name != tt.name || !reflect.DeepEqual(args, tt.args) {
			t.Errorf("command(%s) = %s %v, want %s %v", tt.goos, name, args, tt.name, tt.args)
		}
	}
}
