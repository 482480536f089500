package detector

import (
	"fmt"
	"image"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/motion"
	"doorwatch/internal/pipeline"
)

// DoorConfig holds the scaled settings of the door detector
type DoorConfig struct {
	Extractor      motion.ExtractorConfig
	MovementCutoff int // Changed pixel count above which the frame counts as motion
	ColorCutoff    float64
	Profiles       []ColorProfile
	LeftDoor       pipeline.Region
	RightDoor      pipeline.Region
	FramesToWait   int
	StatusInterval int // Log the counters every N ticks, 0 disables it
}

// DoorDetector raises door_left_open when the door stays open with no one
// around, and door_closed when that alarm ends. It implements pipeline.Detector.
type DoorDetector struct {
	cfg        DoorConfig
	extractor  *motion.Extractor
	classifier *ColorClassifier
	alarm      *PersistenceAlarm
	ticks      uint64
	alarms     uint64
}

// NewDoorDetector creates the detector for frames of the given bounds
func NewDoorDetector(cfg DoorConfig, bounds image.Rectangle) (*DoorDetector, error) {
	extractor, err := motion.NewExtractor(cfg.Extractor)
	if err != nil {
		return nil, err
	}
	classifier, err := NewColorClassifier(cfg.Profiles, cfg.ColorCutoff)
	if err != nil {
		return nil, err
	}
	if cfg.MovementCutoff < 0 {
		return nil, fmt.Errorf("%w: movement cutoff must not be negative, got %d", pipeline.ErrMalformedConfig, cfg.MovementCutoff)
	}
	if cfg.FramesToWait < 0 {
		return nil, fmt.Errorf("%w: frames to wait must not be negative, got %d", pipeline.ErrMalformedConfig, cfg.FramesToWait)
	}
	if !cfg.LeftDoor.Within(bounds) {
		return nil, fmt.Errorf("%w: left door region %v outside frame %v", pipeline.ErrMalformedConfig, cfg.LeftDoor, bounds)
	}
	if !cfg.RightDoor.Within(bounds) {
		return nil, fmt.Errorf("%w: right door region %v outside frame %v", pipeline.ErrMalformedConfig, cfg.RightDoor, bounds)
	}

	return &DoorDetector{
		cfg:        cfg,
		extractor:  extractor,
		classifier: classifier,
		alarm:      NewPersistenceAlarm(cfg.FramesToWait),
	}, nil
}

// Name implements pipeline.Detector
func (d *DoorDetector) Name() string { return "door" }

// Process implements pipeline.Detector
func (d *DoorDetector) Process(prev, cur *pipeline.Frame) ([]*pipeline.Event, error) {
	changed, err := d.extractor.CountChanged(prev.Gray, cur.Gray)
	if err != nil {
		return nil, err
	}
	motionDetected := changed > d.cfg.MovementCutoff

	left := d.classifier.Classify(cur.Color, d.cfg.LeftDoor)
	right := d.classifier.Classify(cur.Color, d.cfg.RightDoor)
	doorClosed := left.Matches && right.Matches

	monitoring.Debugf("[DoorDetector] Frame %d: changed=%d left=%.1f (%s) right=%.1f (%s)",
		cur.Seq, changed, left.Distance, left.Profile, right.Distance, right.Profile)

	transition := d.alarm.Step(motionDetected, doorClosed)

	d.ticks++
	if d.cfg.StatusInterval > 0 && d.ticks%uint64(d.cfg.StatusInterval) == 0 {
		sinceMotion, sinceClosed := d.alarm.Counters()
		monitoring.Logf("[DoorDetector] Last movement: %d, last closed: %d (%s)", sinceMotion, sinceClosed, d.alarm.State())
	}

	switch transition {
	case TransitionStart:
		d.alarms++
		monitoring.Logf("[DoorDetector] Door was left open")
		return []*pipeline.Event{pipeline.NewEvent(pipeline.EventDoorLeftOpen, cur.Seq, cur.Timestamp)}, nil
	case TransitionStop:
		monitoring.Logf("[DoorDetector] Door alarm cleared (motion=%v closed=%v)", motionDetected, doorClosed)
		return []*pipeline.Event{pipeline.NewEvent(pipeline.EventDoorClosed, cur.Seq, cur.Timestamp)}, nil
	}
	return nil, nil
}

// Alarm exposes the alarm state machine
func (d *DoorDetector) Alarm() *PersistenceAlarm { return d.alarm }

// StatsLine implements pipeline.StatsReporter
func (d *DoorDetector) StatsLine() string {
	sinceMotion, sinceClosed := d.alarm.Counters()
	return fmt.Sprintf("ticks=%d alarms=%d state=%s since_motion=%d since_closed=%d",
		d.ticks, d.alarms, d.alarm.State(), sinceMotion, sinceClosed)
}

var _ pipeline.Detector = (*DoorDetector)(nil)
