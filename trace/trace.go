// Package trace records FrameStates into a bbolt database and plays them
// back. A recorded session reproduces the exact sequence of tree changes a
// consumer saw, which is what protocol bugs need.
package trace

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phanxgames/strata"
	bolt "go.etcd.io/bbolt"
)

const bucketFrames = "frames"

// ErrNoFrame is returned by Frame for a sequence number with no record.
var ErrNoFrame = errors.New("trace: no such frame")

// Recorder appends FrameStates to a database file. It is safe for
// concurrent use.
type Recorder struct {
	db *bolt.DB
}

// Open opens or creates a trace file.
func Open(path string) (*Recorder, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketFrames))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("trace: init %s: %w", path, err)
	}
	strata.Logger().Info("trace opened", slog.String("path", path))
	return &Recorder{db: db}, nil
}

// Close closes the database.
func (r *Recorder) Close() error { return r.db.Close() }

// Record appends fs and returns its sequence number, starting at 1.
func (r *Recorder) Record(fs *strata.FrameState) (uint64, error) {
	data, err := json.Marshal(fs)
	if err != nil {
		return 0, fmt.Errorf("trace: encode frame %d: %w", fs.Frame, err)
	}
	var seq uint64
	err = r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketFrames))
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), data)
	})
	return seq, err
}

// Count returns the number of recorded frames.
func (r *Recorder) Count() (int, error) {
	var n int
	err := r.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketFrames)).Stats().KeyN
		return nil
	})
	return n, err
}

// Frame returns the frame recorded under seq.
func (r *Recorder) Frame(seq uint64) (*strata.FrameState, error) {
	var fs *strata.FrameState
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketFrames)).Get(marshalSeq(seq))
		if v == nil {
			return ErrNoFrame
		}
		var err error
		fs, err = decode(seq, v)
		return err
	})
	return fs, err
}

// Frames calls f for every frame with from <= seq < upto, in order. An
// upto of zero means no upper bound. An error from f stops the iteration
// and is returned.
func (r *Recorder) Frames(from, upto uint64, f func(seq uint64, fs *strata.FrameState) error) error {
	return r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketFrames)).Cursor()
		for k, v := c.Seek(marshalSeq(from)); k != nil; k, v = c.Next() {
			seq := unmarshalSeq(k)
			if upto != 0 && seq >= upto {
				break
			}
			fs, err := decode(seq, v)
			if err != nil {
				return err
			}
			if err := f(seq, fs); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replay commits every recorded frame to sink in order.
func (r *Recorder) Replay(ctx context.Context, sink strata.FrameSink) error {
	return r.Frames(0, 0, func(_ uint64, fs *strata.FrameState) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return sink.CommitFrame(ctx, fs)
	})
}

func decode(seq uint64, data []byte) (*strata.FrameState, error) {
	var fs strata.FrameState
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("trace: decode record %d: %w", seq, err)
	}
	return &fs, nil
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

// Sink records every frame before passing it on to Next.
type Sink struct {
	Next     strata.FrameSink
	Recorder *Recorder
}

// CommitFrame implements strata.FrameSink. A recording failure is logged
// and does not stop the frame.
func (s Sink) CommitFrame(ctx context.Context, fs *strata.FrameState) error {
	if _, err := s.Recorder.Record(fs); err != nil {
		strata.Logger().Warn("trace record failed", slog.Uint64("frame", fs.Frame), slog.Any("error", err))
	}
	return s.Next.CommitFrame(ctx, fs)
}
