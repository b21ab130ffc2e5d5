package hwinfo

import "testing"

func TestParseGPU(t *testing.T) {
	output := `00:00.0 Host bridge: Intel Corporation Xeon E3-1200 v6/7th Gen Core Processor Host Bridge/DRAM Registers (rev 05)
00:02.0 VGA compatible controller: Intel Corporation HD Graphics 630 (rev 04)
01:00.0 3D controller: NVIDIA Corporation GP107M [GeForce GTX 1050 Mobile] (rev a1)
`
	got := parseGPU(output)
	if got != "Intel Corporation HD Graphics 630 (rev 04)" {
		t.Fatalf("unexpected GPU: %q", got)
	}
}

func TestParseGPUNoDisplayController(t *testing.T) {
	if got := parseGPU("00:00.0 Host bridge: Intel Corporation\n"); got != "" {
		t.Fatalf("expected empty GPU, got %q", got)
	}
}
