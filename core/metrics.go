package core

// Storage charge sources
const (
	ChargeSubmission  = "submission"
	ChargeMaterial    = "material"
	ChargeRecording   = "recording"
	ChargePublication = "publication"
)

// Recorder receives workflow events for instrumentation.
type Recorder interface {
	SubmissionRecorded(late bool)
	GradesSaved(count int)
	StorageCharged(source string, bytes int64)
	NotificationsDispatched(kind string, count int)
	NotificationFailed(kind string)
}

type nopRecorder struct{}

func (nopRecorder) SubmissionRecorded(bool) {}
func (nopRecorder) GradesSaved(int) {}
func (nopRecorder) StorageCharged(string, int64) {}
func (nopRecorder) NotificationsDispatched(string, int) {}
func (nopRecorder) NotificationFailed(string) {}

// NopRecorder discards every event.
var NopRecorder Recorder = nopRecorder{}
