package netio

import "testing"

func TestResolveTCPv4(t *testing.T) {
	sa, isV6, err := ResolveTCP("127.0.0.1:9090")
	if err != nil {
		t.Fatalf("ResolveTCP: %v", err)
	}
	if isV6 {
		t.Fatalf("expected IPv4 address")
	}
	if sa == nil {
		t.Fatalf("expected non-nil sockaddr")
	}
}

func TestResolveTCPv6(t *testing.T) {
	sa, isV6, err := ResolveTCP("[::1]:9090")
	if err != nil {
		t.Fatalf("ResolveTCP: %v", err)
	}
	if !isV6 {
		t.Fatalf("expected IPv6 address")
	}
	if sa == nil {
		t.Fatalf("expected non-nil sockaddr")
	}
}

func TestResolveTCPInvalidAddress(t *testing.T) {
	if _, _, err := ResolveTCP("not-an-address"); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}

func TestListenStreamLoopback(t *testing.T) {
	lfd, err := ListenStream("127.0.0.1:0")
	if err != nil {
		t.Skipf("listen not available in this sandbox: %v", err)
	}
	defer Close(lfd)
}
