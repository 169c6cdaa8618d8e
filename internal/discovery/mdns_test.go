package discovery

import (
	"net"
	"testing"
)

func TestNewService(t *testing.T) {
	svc, err := newService("studio", "studio-host.", 3000, []net.IP{net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	if svc.Instance != "studio" || svc.Service != ServiceType || svc.Port != 3000 {
		t.Fatalf("unexpected service %+v", svc)
	}
	if len(svc.TXT) != 2 || svc.TXT[1] != "path=/ws" {
		t.Fatalf("unexpected TXT %v", svc.TXT)
	}
}

func TestNewServiceRequiresPort(t *testing.T) {
	if _, err := newService("studio", "studio-host.", 0, []net.IP{net.IPv4(127, 0, 0, 1)}); err == nil {
		t.Fatalf("expected error for a missing port")
	}
}
