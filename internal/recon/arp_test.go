package recon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestParseLinuxARP(t *testing.T) {
	output := `IP address       HW type     Flags       HW address            Mask     Device
192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
192.168.1.2      0x1         0x2         11:22:33:44:55:66     *        eth0
192.168.1.3      0x1         0x0         00:00:00:00:00:00     *        eth0
`
	got := ParseARPOutput(output, "linux")
	if len(got) != 2 {
		t.Fatalf("entry count = %d, want 2 (incomplete entry skipped)", len(got))
	}
	if got[0].IP != "192.168.1.1" || got[0].MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("got[0] = %+v, want 192.168.1.1 aa:bb:cc:dd:ee:ff", got[0])
	}
	if got[1].MAC != "11:22:33:44:55:66" {
		t.Errorf("got[1].MAC = %q, want 11:22:33:44:55:66", got[1].MAC)
	}
}

func TestParseWindowsARP(t *testing.T) {
	output := `
Interface: 192.168.1.100 --- 0x4
  Internet Address      Physical Address      Type
  192.168.1.1           aa-bb-cc-dd-ee-ff     dynamic
  192.168.1.2           11-22-33-44-55-66     dynamic
  192.168.1.255         ff-ff-ff-ff-ff-ff     static
  224.0.0.22            01-00-5e-00-00-16     static
`
	got := ParseARPOutput(output, "windows")
	if len(got) != 2 {
		t.Fatalf("entry count = %d, want 2 (broadcast and multicast skipped)", len(got))
	}
	if got[0].MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("got[0].MAC = %q, want aa:bb:cc:dd:ee:ff", got[0].MAC)
	}
}

func TestParseDarwinARP(t *testing.T) {
	output := `nas.lan (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
? (192.168.1.2) at 0:1a:2b:3:4:5 on en0 ifscope [ethernet]
? (192.168.1.3) at (incomplete) on en0 ifscope [ethernet]
`
	got := ParseARPOutput(output, "darwin")
	if len(got) != 2 {
		t.Fatalf("entry count = %d, want 2 (incomplete skipped)", len(got))
	}
	if got[0].Name != "nas.lan" {
		t.Errorf("got[0].Name = %q, want nas.lan", got[0].Name)
	}
	if got[1].MAC != "00:1a:2b:03:04:05" {
		t.Errorf("got[1].MAC = %q, want padded 00:1a:2b:03:04:05", got[1].MAC)
	}
	if got[1].Name != UnknownName {
		t.Errorf("got[1].Name = %q, want %q", got[1].Name, UnknownName)
	}
}

func TestParseARP_EmptyOutput(t *testing.T) {
	for _, platform := range []string{"linux", "windows", "darwin"} {
		t.Run(platform, func(t *testing.T) {
			if got := ParseARPOutput("", platform); len(got) != 0 {
				t.Errorf("expected no entries, got %d", len(got))
			}
		})
	}
}

func TestParseARP_UnknownPlatform(t *testing.T) {
	if got := ParseARPOutput("anything", "plan9"); len(got) != 0 {
		t.Errorf("expected no entries for unknown platform, got %d", len(got))
	}
}

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AA:BB:CC:DD:EE:01", "aa:bb:cc:dd:ee:01"},
		{"aa-bb-cc-dd-ee-01", "aa:bb:cc:dd:ee:01"},
		{"aabb.ccdd.ee01", "aa:bb:cc:dd:ee:01"},
		{"AABBCCDDEE01", "aa:bb:cc:dd:ee:01"},
		{" 0:1a:2b:3:4:5 ", "00:1a:2b:03:04:05"},
		{"", ""},
		{"aa:bb:cc", ""},
		{"zz:bb:cc:dd:ee:01", ""},
		{"aa:bb:cc:dd:ee:01:02", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeMAC(tt.in); got != tt.want {
				t.Errorf("NormalizeMAC(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFindByMAC(t *testing.T) {
	neighbors := []Neighbor{
		{IP: "10.0.0.4", MAC: "aa:bb:cc:dd:ee:00", Name: "?"},
		{IP: "10.0.0.5", MAC: "aa:bb:cc:dd:ee:01", Name: "?"},
	}

	n, ok := FindByMAC(neighbors, "AA:BB:CC:DD:EE:01")
	if !ok {
		t.Fatal("FindByMAC() did not find configured upper-case MAC")
	}
	if n.IP != "10.0.0.5" {
		t.Errorf("IP = %q, want 10.0.0.5", n.IP)
	}

	if _, ok := FindByMAC(neighbors, "AA:BB:CC:DD:EE:02"); ok {
		t.Error("FindByMAC() found a MAC that is not in the table")
	}
	if _, ok := FindByMAC(neighbors, "garbage"); ok {
		t.Error("FindByMAC() matched an invalid MAC")
	}
}

// fakeResolver answers reverse lookups from a fixed table.
type fakeResolver struct {
	names map[string]string
}

func (r *fakeResolver) LookupAddr(_ context.Context, addr string) ([]string, error) {
	if name, ok := r.names[addr]; ok {
		return []string{name}, nil
	}
	return nil, errors.New("no such host")
}

func newTestScanner(table string, readErr error, resolver Resolver) *ARPScanner {
	s := NewARPScanner(zap.NewNop(), resolver)
	s.platform = "linux"
	s.readTable = func(context.Context) (string, string, error) { return table, "linux", readErr }
	return s
}

func TestARPScanner_ResolvesNames(t *testing.T) {
	table := `IP address       HW type     Flags       HW address            Mask     Device
10.0.0.5         0x1         0x2         aa:bb:cc:dd:ee:01     *        eth0
10.0.0.6         0x1         0x2         aa:bb:cc:dd:ee:02     *        eth0
`
	s := newTestScanner(table, nil, &fakeResolver{names: map[string]string{"10.0.0.5": "desktop.lan."}})

	got, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Scan() returned %d neighbors, want 2", len(got))
	}
	if got[0].Name != "desktop.lan" {
		t.Errorf("got[0].Name = %q, want desktop.lan (trailing dot trimmed)", got[0].Name)
	}
	if got[1].Name != UnknownName {
		t.Errorf("got[1].Name = %q, want %q", got[1].Name, UnknownName)
	}
}

func TestARPScanner_NilResolver(t *testing.T) {
	table := `IP address       HW type     Flags       HW address            Mask     Device
10.0.0.5         0x1         0x2         aa:bb:cc:dd:ee:01     *        eth0
`
	s := newTestScanner(table, nil, nil)

	got, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != UnknownName {
		t.Errorf("Scan() = %+v, want one neighbor named %q", got, UnknownName)
	}
}

func TestARPScanner_ReadFailure(t *testing.T) {
	s := newTestScanner("", errors.New("permission denied"), nil)

	_, err := s.Scan(context.Background())
	if !errors.Is(err, ErrDiscovery) {
		t.Fatalf("Scan() error = %v, want ErrDiscovery", err)
	}
	var de *DiscoveryError
	if !errors.As(err, &de) || de.Op != "read arp table" {
		t.Errorf("Scan() error = %#v, want DiscoveryError{Op: read arp table}", err)
	}
}

func TestARPScanner_CommandFallbackIsPerScan(t *testing.T) {
	procPath := filepath.Join(t.TempDir(), "arp")
	procTable := `IP address       HW type     Flags       HW address            Mask     Device
10.0.0.5         0x1         0x2         aa:bb:cc:dd:ee:01     *        eth0
`
	var commandRuns int
	s := NewARPScanner(zap.NewNop(), nil)
	s.platform = "linux"
	s.procPath = procPath
	s.runARP = func(context.Context) ([]byte, error) {
		commandRuns++
		return []byte("desk.lan (10.0.0.6) at aa:bb:cc:dd:ee:02 [ether] on eth0\n"), nil
	}
	ctx := context.Background()

	// No proc table yet: the arp command output is parsed in the BSD layout.
	got, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 || got[0].MAC != "aa:bb:cc:dd:ee:02" || got[0].Name != "desk.lan" {
		t.Fatalf("fallback Scan() = %+v, want desk.lan aa:bb:cc:dd:ee:02", got)
	}

	// Once the proc table is readable again it is parsed as Linux.
	if err := os.WriteFile(procPath, []byte(procTable), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 || got[0].MAC != "aa:bb:cc:dd:ee:01" {
		t.Fatalf("proc Scan() = %+v, want aa:bb:cc:dd:ee:01", got)
	}
	if commandRuns != 1 {
		t.Errorf("arp command ran %d times, want 1", commandRuns)
	}
	if s.platform != "linux" {
		t.Errorf("platform = %q after fallback, want linux", s.platform)
	}
}

func TestARPScanner_CommandFailure(t *testing.T) {
	s := NewARPScanner(zap.NewNop(), nil)
	s.platform = "darwin"
	s.runARP = func(context.Context) ([]byte, error) { return nil, errors.New("arp: not found") }

	if _, err := s.Scan(context.Background()); !errors.Is(err, ErrDiscovery) {
		t.Fatalf("Scan() error = %v, want ErrDiscovery", err)
	}
}
