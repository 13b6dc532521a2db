package media

// JobDescriptor is the JSON unit enqueued on the distributed queue (spec
// §3). Created on a cache miss in the coordinator; destroyed (logically)
// when a worker receives it — the queue adapter uses receive-and-delete
// semantics, so there is no explicit delete call for it.
type JobDescriptor struct {
	ImageHash     string `json:"ImageHash"`
	ScanURL       string `json:"ScanUrl"`
	DataType      string `json:"DataType"`
	DataExtension string `json:"DataExtension"`
}

// Empty reports whether any required field of d is unset, matching the
// non-empty validation get_work applies to a freshly-dequeued descriptor.
func (d JobDescriptor) Empty() bool {
	return d.ImageHash == "" || d.ScanURL == "" || d.DataType == "" || d.DataExtension == ""
}

// RecognitionResult is the JSON object stored in the result store under the
// fingerprint. ScanMachineGuid and IsUserScan are provenance
// fields the worker surface overwrites from authenticated claims before
// storage — never trusted from a caller's request body.
type RecognitionResult struct {
	Key             string `json:"Key"`
	ScanResult      string `json:"ScanResult"`
	DataType        string `json:"DataType"`
	DataExtension   string `json:"DataExtension"`
	ScanMachineGuid string `json:"ScanMachineGuid"`
	IsUserScan      bool   `json:"IsUserScan"`
}

// Valid reports whether every required field is present and non-empty —
// the stricter reading, chosen over a mere not-null check. A result
// failing this is corrupt and must be deleted on read rather than returned.
func (r RecognitionResult) Valid() bool {
	return r.Key != "" && r.ScanResult != "" && r.DataType != "" &&
		r.DataExtension != "" && r.ScanMachineGuid != ""
}
