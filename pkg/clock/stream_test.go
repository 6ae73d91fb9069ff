package clock

import "testing"

func TestParseEndpointExtractsToken(t *testing.T) {
	endpoint, token, err := parseEndpoint("https://geyser.example.com/0123456789abcdef")
	if err != nil {
		t.Fatalf("parseEndpoint failed: %v", err)
	}
	if endpoint != "https://geyser.example.com" {
		t.Errorf("unexpected endpoint: %s", endpoint)
	}
	if token != "0123456789abcdef" {
		t.Errorf("unexpected token: %s", token)
	}
}

func TestParseEndpointNoTokenForShortPath(t *testing.T) {
	endpoint, token, err := parseEndpoint("https://geyser.example.com/hi")
	if err != nil {
		t.Fatalf("parseEndpoint failed: %v", err)
	}
	if endpoint != "https://geyser.example.com" {
		t.Errorf("unexpected endpoint: %s", endpoint)
	}
	if token != "" {
		t.Errorf("expected no token extracted, got %q", token)
	}
}

func TestParseEndpointRejectsInvalidURL(t *testing.T) {
	if _, _, err := parseEndpoint("://not-a-url"); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}
