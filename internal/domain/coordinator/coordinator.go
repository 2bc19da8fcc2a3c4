// Package coordinator turns track lifecycles into durable visitor records.
//
// Per track the coordinator walks Unbound -> Bound -> Evicted. A track is
// bound to an identity the first time an embedding resolves for it; an entry
// event is written only when that resolution registered a new identity. When
// a bound track is evicted exactly one exit event is written, using the box
// and frame of its last sighting.
//
// A Coordinator serves one stream and is not safe for concurrent use. The
// store it writes to may be shared between streams.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"time"

	"github.com/okian/footfall/internal/domain/dedupe"
	"github.com/okian/footfall/internal/domain/geometry"
	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/internal/domain/tracker"
	"github.com/okian/footfall/pkg/logger"
	"github.com/okian/footfall/pkg/metrics"
)

// Image categories under the image sink root.
const (
	DirRegisteredFaces = "registered_faces"
	dateLayout         = "2006-01-02"
	stampLayout        = "2006-01-02T15-04-05.000"
)

// Embedder extracts the embedding for one box of a frame. ok is false when
// nothing usable came out; the track is retried on its next frame.
type Embedder interface {
	Embed(ctx context.Context, frame *model.Frame, box geometry.Box) (vec []float64, ok bool)
}

// Store is the identity store and event log the coordinator drives.
type Store interface {
	FindBestMatch(ctx context.Context, embedding []float64, threshold float64) (model.Match, error)
	MatchOrRegister(ctx context.Context, embedding []float64, threshold float64, imagePath string, at time.Time) (model.Resolution, error)
	Count(ctx context.Context) (int, error)
	AppendEvent(ctx context.Context, ev model.Event) (int64, error)
}

// ImageSink persists crops and returns where they went.
type ImageSink interface {
	Save(ctx context.Context, dir, name string, img image.Image) (string, error)
}

// Outcome counts what one call did.
type Outcome struct {
	Matched    int `json:"matched"`
	Registered int `json:"registered"`
	Entries    int `json:"entries"`
	Exits      int `json:"exits"`
}

// Add accumulates o2 into o.
func (o *Outcome) Add(o2 Outcome) {
	o.Matched += o2.Matched
	o.Registered += o2.Registered
	o.Entries += o2.Entries
	o.Exits += o2.Exits
}

type binding struct {
	identityID   int64
	pendingEntry bool
}

type sighting struct {
	box   geometry.Box
	frame *model.Frame
}

// Coordinator owns the track to identity bindings of one stream.
type Coordinator struct {
	stream   string
	store    Store
	embedder Embedder
	images   ImageSink
	dedupe   dedupe.Deduper

	threshold         float64
	entryOnReidentify bool

	bindings map[int]*binding
	last     map[int]sighting

	logger logger.Logger
}

// New creates a coordinator for stream.
func New(stream string, store Store, embedder Embedder, opts ...Option) *Coordinator {
	c := &Coordinator{
		stream:    stream,
		store:     store,
		embedder:  embedder,
		threshold: DefaultMatchThreshold,
		bindings:  make(map[int]*binding),
		last:      make(map[int]sighting),
		logger:    logger.Get().Named("coordinator"),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.dedupe == nil {
		c.dedupe = dedupe.NewInMemoryDeduper()
	}
	c.logger = c.logger.Named(stream)
	return c
}

// Process applies one tracker update. Evictions are handled before active
// tracks, and only tracks matched in frame are resolved or re-sighted. Per-track failures are joined into the returned error; they never
// stop the other tracks of the frame.
func (c *Coordinator) Process(ctx context.Context, frame *model.Frame, res tracker.Result) (Outcome, error) {
	out, errs := c.evict(ctx, res.Evicted)

	for _, tr := range res.Active {
		// A track the tracker did not match was not seen in this frame:
		// its box is stale, so there is nothing to embed or record.
		if tr.Missed > 0 {
			continue
		}
		c.last[tr.ID] = sighting{box: tr.Box, frame: frame}

		o, err := c.handleActive(ctx, frame, tr)
		out.Add(o)
		if err != nil {
			errs = append(errs, fmt.Errorf("track %d: %w", tr.ID, err))
		}
	}
	return out, errors.Join(errs...)
}

// Flush handles tracks evicted outside a frame, e.g. drained at stream end.
func (c *Coordinator) Flush(ctx context.Context, evicted []tracker.Track) (Outcome, error) {
	out, errs := c.evict(ctx, evicted)
	return out, errors.Join(errs...)
}

// Bound returns the identity bound to a track.
func (c *Coordinator) Bound(trackID int) (int64, bool) {
	b, ok := c.bindings[trackID]
	if !ok {
		return 0, false
	}
	return b.identityID, true
}

// BoundCount returns the number of live bindings.
func (c *Coordinator) BoundCount() int {
	return len(c.bindings)
}

func (c *Coordinator) evict(ctx context.Context, evicted []tracker.Track) (Outcome, []error) {
	var (
		out  Outcome
		errs []error
	)
	for _, tr := range evicted {
		seen, hasSighting := c.last[tr.ID]
		delete(c.last, tr.ID)

		b, bound := c.bindings[tr.ID]
		delete(c.bindings, tr.ID)
		if !bound {
			continue
		}

		if err := c.emitExit(ctx, tr, b.identityID, seen, hasSighting); err != nil {
			errs = append(errs, fmt.Errorf("track %d exit: %w", tr.ID, err))
		} else {
			out.Exits++
		}
		c.dedupe.Forget(ctx, dedupe.TrackPrefix(c.stream, tr.ID))
	}
	return out, errs
}

func (c *Coordinator) emitExit(ctx context.Context, tr tracker.Track, identityID int64, seen sighting, ok bool) error {
	key := dedupe.TransitionKey(string(model.EventExit), c.stream, tr.ID)
	if c.dedupe.SeenAndRecord(ctx, key) {
		return nil
	}

	var (
		frame *model.Frame
		at    = time.Now().UTC()
		box   = tr.Box
	)
	if ok && seen.frame != nil {
		frame, box = seen.frame, seen.box
		if !frame.Timestamp.IsZero() {
			at = frame.Timestamp
		}
	}

	imgPath := c.saveEventCrop(ctx, model.EventExit, identityID, at, frame, box)
	if _, err := c.store.AppendEvent(ctx, model.Event{
		IdentityID: identityID,
		Kind:       model.EventExit,
		Timestamp:  at,
		ImagePath:  imgPath,
		Stream:     c.stream,
		TrackID:    tr.ID,
	}); err != nil {
		metrics.RecordPersistenceError("exit")
		c.logger.Error(ctx, "exit not recorded",
			logger.Int64("identity_id", identityID),
			logger.Int("track_id", tr.ID),
			logger.Error(err),
		)
		return err
	}

	c.logger.Info(ctx, "exit recorded",
		logger.Int64("identity_id", identityID),
		logger.Int("track_id", tr.ID),
		logger.String("image_path", imgPath),
	)
	return nil
}

func (c *Coordinator) handleActive(ctx context.Context, frame *model.Frame, tr tracker.Track) (Outcome, error) {
	var out Outcome

	if b, ok := c.bindings[tr.ID]; ok {
		if b.pendingEntry {
			if err := c.emitEntry(ctx, frame, tr, b); err != nil {
				return out, err
			}
			out.Entries++
		}
		return out, nil
	}

	vec, ok := c.embedder.Embed(ctx, frame, tr.Box)
	if !ok || len(vec) == 0 {
		metrics.RecordEmbedMiss(c.stream)
		return out, nil
	}

	m, err := c.store.FindBestMatch(ctx, vec, c.threshold)
	if err != nil {
		metrics.RecordPersistenceError("resolve")
		return out, fmt.Errorf("find best match: %w", err)
	}

	if m.Found {
		b := c.bind(tr.ID, m.IdentityID, c.entryOnReidentify)
		out.Matched++
		c.logger.Info(ctx, "recognized existing face",
			logger.Int64("identity_id", m.IdentityID),
			logger.Float64("similarity", m.Similarity),
			logger.Int("track_id", tr.ID),
		)
		return c.entryIfPending(ctx, frame, tr, b, out)
	}

	c.logger.Debug(ctx, "near miss",
		logger.Float64("best_similarity", m.Similarity),
		logger.Float64("threshold", c.threshold),
		logger.Int("track_id", tr.ID),
	)

	refPath, err := c.saveReference(ctx, frame, tr.Box)
	if err != nil {
		return out, err
	}

	at := frameTime(frame)
	res, err := c.store.MatchOrRegister(ctx, vec, c.threshold, refPath, at)
	if err != nil {
		metrics.RecordPersistenceError("register")
		return out, fmt.Errorf("register: %w", err)
	}

	if !res.Created {
		// Another stream registered this face between the lookup and now.
		b := c.bind(tr.ID, res.IdentityID, c.entryOnReidentify)
		out.Matched++
		c.logger.Info(ctx, "recognized existing face",
			logger.Int64("identity_id", res.IdentityID),
			logger.Float64("similarity", res.Similarity),
			logger.Int("track_id", tr.ID),
		)
		return c.entryIfPending(ctx, frame, tr, b, out)
	}

	b := c.bind(tr.ID, res.IdentityID, true)
	out.Registered++
	c.logger.Info(ctx, "registered new face",
		logger.Int64("identity_id", res.IdentityID),
		logger.Int("track_id", tr.ID),
		logger.String("image_path", refPath),
	)
	return c.entryIfPending(ctx, frame, tr, b, out)
}

func (c *Coordinator) bind(trackID int, identityID int64, entry bool) *binding {
	b := &binding{identityID: identityID, pendingEntry: entry}
	c.bindings[trackID] = b
	return b
}

func (c *Coordinator) entryIfPending(ctx context.Context, frame *model.Frame, tr tracker.Track, b *binding, out Outcome) (Outcome, error) {
	if !b.pendingEntry {
		return out, nil
	}
	if err := c.emitEntry(ctx, frame, tr, b); err != nil {
		return out, err
	}
	out.Entries++
	return out, nil
}

// emitEntry writes the entry event of a bound track. On failure the entry
// stays pending and is retried on the track's next frame.
func (c *Coordinator) emitEntry(ctx context.Context, frame *model.Frame, tr tracker.Track, b *binding) error {
	key := dedupe.TransitionKey(string(model.EventEntry), c.stream, tr.ID)
	if c.dedupe.SeenAndRecord(ctx, key) {
		b.pendingEntry = false
		return nil
	}

	at := frameTime(frame)
	imgPath := c.saveEventCrop(ctx, model.EventEntry, b.identityID, at, frame, tr.Box)
	if _, err := c.store.AppendEvent(ctx, model.Event{
		IdentityID: b.identityID,
		Kind:       model.EventEntry,
		Timestamp:  at,
		ImagePath:  imgPath,
		Stream:     c.stream,
		TrackID:    tr.ID,
	}); err != nil {
		c.dedupe.Unrecord(ctx, key)
		metrics.RecordPersistenceError("entry")
		c.logger.Error(ctx, "entry not recorded",
			logger.Int64("identity_id", b.identityID),
			logger.Int("track_id", tr.ID),
			logger.Error(err),
		)
		return fmt.Errorf("entry: %w", err)
	}

	b.pendingEntry = false
	c.logger.Info(ctx, "entry recorded",
		logger.Int64("identity_id", b.identityID),
		logger.Int("track_id", tr.ID),
		logger.String("image_path", imgPath),
	)
	return nil
}

// saveReference stores the reference crop of a face about to be registered,
// named after the id it is expected to get.
func (c *Coordinator) saveReference(ctx context.Context, frame *model.Frame, box geometry.Box) (string, error) {
	if c.images == nil || frame == nil || frame.Image == nil {
		return "", nil
	}
	n, err := c.store.Count(ctx)
	if err != nil {
		metrics.RecordPersistenceError("resolve")
		return "", fmt.Errorf("count identities: %w", err)
	}
	return c.save(ctx, DirRegisteredFaces, fmt.Sprintf("face_%d", n+1), frame, box), nil
}

func (c *Coordinator) saveEventCrop(ctx context.Context, kind model.EventKind, identityID int64, at time.Time, frame *model.Frame, box geometry.Box) string {
	dir := path.Join(string(kind)+"s", at.Format(dateLayout))
	name := fmt.Sprintf("%s_%d_%s", kind, identityID, at.Format(stampLayout))
	return c.save(ctx, dir, name, frame, box)
}

// save crops box out of frame and hands it to the sink. Image failures are
// logged and leave the path empty; the record is still written.
func (c *Coordinator) save(ctx context.Context, dir, name string, frame *model.Frame, box geometry.Box) string {
	if c.images == nil || frame == nil || frame.Image == nil {
		return ""
	}
	w, h := frame.Width, frame.Height
	if w <= 0 || h <= 0 {
		w, h = frame.Image.Bounds().Dx(), frame.Image.Bounds().Dy()
	}
	b := geometry.Clamp(box, w, h)
	p, err := c.images.Save(ctx, dir, name, geometry.Crop(frame.Image, b))
	if err != nil {
		metrics.RecordPersistenceError("image")
		c.logger.Warn(ctx, "crop not saved", logger.String("name", name), logger.Error(err))
		return ""
	}
	return p
}

func frameTime(frame *model.Frame) time.Time {
	if frame == nil || frame.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return frame.Timestamp
}
