package device

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		device  string
		threads int
		wantErr bool
	}{
		{"explicit threads", "cpu", 3, false},
		{"all cores", "cpu", 0, false},
		{"negative threads", "cpu", -1, true},
		{"gpu", "cuda", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Resolve(tt.device, tt.threads)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if d.Name != CPU || d.Threads <= 0 {
				t.Errorf("device = %+v", d)
			}
			if tt.threads > 0 && d.Threads != tt.threads {
				t.Errorf("threads = %v, want %v", d.Threads, tt.threads)
			}
		})
	}
}
