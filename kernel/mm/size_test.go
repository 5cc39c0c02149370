package mm

import "testing"

func TestSize(t *testing.T) {
	specs := []struct {
		size     Size
		expStr   string
		expPages uint64
	}{
		{0, "0b", 0},
		{1, "1b", 1},
		{4 * Kb, "4Kb", 1},
		{4*Kb + 1, "4097b", 2},
		{1536 * Kb, "1536Kb", 384},
		{64 * Mb, "64Mb", 16384},
		{4 * Gb, "4Gb", 1 << 20},
	}

	for specIndex, spec := range specs {
		if got := spec.size.String(); got != spec.expStr {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.expStr, got)
		}
		if got := spec.size.Pages(); got != spec.expPages {
			t.Errorf("[spec %d] expected %d pages; got %d", specIndex, spec.expPages, got)
		}
	}
}
