package dialer

// Tagged-union of call transition events. The reducer is a pure function;
// all side effects (timers, platform calls) live in CallManager.

type callEvent interface {
	callEvent()
}

type evSetPhoneNumber struct{ number string }
type evStartDialing struct{}
type evRinging struct{}
type evConnect struct{}

// evEnd moves any in-flight state to Ended. message is empty for benign
// terminal causes (completed, cancelled, timeout).
type evEnd struct{ message string }

type evReset struct{}
type evTick struct{}

// evError rejects a call attempt before it reaches the platform, or records
// an initiation failure. State returns to Idle, not Ended.
type evError struct{ message string }

type evSetCallID struct{ id string }
type evRecordingStarted struct{ recordingID string }
type evRecordingStopped struct{}

func (evSetPhoneNumber) callEvent()   {}
func (evStartDialing) callEvent()     {}
func (evRinging) callEvent()          {}
func (evConnect) callEvent()          {}
func (evEnd) callEvent()              {}
func (evReset) callEvent()            {}
func (evTick) callEvent()             {}
func (evError) callEvent()            {}
func (evSetCallID) callEvent()        {}
func (evRecordingStarted) callEvent() {}
func (evRecordingStopped) callEvent() {}

// reduce applies one transition event to a snapshot.
// Unknown combinations leave the snapshot unchanged.
func reduce(s CallSnapshot, ev callEvent) CallSnapshot {
	switch ev := ev.(type) {
	case evSetPhoneNumber:
		s.PhoneNumber = ev.number
		s.ErrorMessage = ""
	case evStartDialing:
		s.State = CallStateDialing
		s.DurationSeconds = 0
		s.ErrorMessage = ""
	case evRinging:
		s.State = CallStateRinging
	case evConnect:
		s.State = CallStateConnected
		s.IsRecording = true
		s.Quality = CallQualityExcellent
	case evEnd:
		s.State = CallStateEnded
		s.IsRecording = false
		s.Quality = CallQualityNone
		if ev.message != "" {
			s.ErrorMessage = ev.message
		}
	case evReset:
		s.State = CallStateIdle
		s.DurationSeconds = 0
		s.CallID = ""
		s.RecordingID = ""
		s.IsRecording = false
		s.Quality = CallQualityNone
	case evTick:
		s.DurationSeconds++
	case evError:
		s.State = CallStateIdle
		s.ErrorMessage = ev.message
	case evSetCallID:
		s.CallID = ev.id
	case evRecordingStarted:
		s.IsRecording = true
		s.RecordingID = ev.recordingID
	case evRecordingStopped:
		s.IsRecording = false
	}
	return s
}
