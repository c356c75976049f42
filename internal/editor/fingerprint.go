package editor

// Detector decides whether live state differs from the last acknowledged
// saved state. The first observed state establishes the baseline and is
// reported clean, so a reload with unchanged content never starts dirty.
type Detector struct {
	baseline    string
	established bool
}

// Check evaluates the live fields against the baseline. ok=false means the
// editing surface had nothing to report yet; that is a transient condition,
// reported clean with no baseline update.
func (d *Detector) Check(fields Fields, ok bool) bool {
	if !ok {
		return false
	}

	fp := fields.Fingerprint()
	if !d.established {
		d.baseline = fp
		d.established = true
		return false
	}
	return fp != d.baseline
}

// Acknowledge records fp as the new last-saved baseline.
func (d *Detector) Acknowledge(fp string) {
	d.baseline = fp
	d.established = true
}
