package store

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/amsen20/argos/internal/model"
	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// BoltDBDecisionStore keeps one bucket per run, values are json encoded
// decisions.
type BoltDBDecisionStore struct {
	db *bolt.DB

	dbFile string

	fileMode os.FileMode
}

func NewBoltDBDecisionStore(file string, mode os.FileMode) (*BoltDBDecisionStore, error) {
	db, err := bolt.Open(file, mode, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %v", file)
	}

	log.Info().Msgf("decision store opened at %s", file)

	return &BoltDBDecisionStore{
		db:       db,
		dbFile:   file,
		fileMode: mode,
	}, nil
}

func (s *BoltDBDecisionStore) Put(decision *model.PlacementDecision) error {
	if decision == nil {
		return errors.New("cannot store a nil decision")
	}

	return s.db.Update(
		func(tx *bolt.Tx) error {
			bucket, err := tx.CreateBucketIfNotExists([]byte(decision.Run))
			if err != nil {
				return errors.Wrapf(err, "create bucket %s", decision.Run)
			}

			buf, err := json.Marshal(decision)
			if err != nil {
				return err
			}

			if err := bucket.Put([]byte(key(decision)), buf); err != nil {
				log.Err(err).Msgf("unable to save decision %s of run %s", key(decision), decision.Run)
				return err
			}

			return nil
		},
	)
}

func (s *BoltDBDecisionStore) List(run string) ([]*model.PlacementDecision, error) {
	var decisions []*model.PlacementDecision

	err := s.db.View(
		func(tx *bolt.Tx) error {
			bucket := tx.Bucket([]byte(run))
			if bucket == nil {
				return errors.Errorf("run %s does not exist", run)
			}

			// bolt iterates keys in byte order
			return bucket.ForEach(
				func(k, v []byte) error {
					var decision model.PlacementDecision
					if err := json.Unmarshal(v, &decision); err != nil {
						return errors.Wrapf(err, "decision %s of run %s", k, run)
					}

					decisions = append(decisions, &decision)

					return nil
				},
			)
		},
	)
	if err != nil {
		return nil, err
	}

	return decisions, nil
}

func (s *BoltDBDecisionStore) Runs() ([]string, error) {
	runs := make([]string, 0)

	err := s.db.View(
		func(tx *bolt.Tx) error {
			return tx.ForEach(
				func(name []byte, _ *bolt.Bucket) error {
					runs = append(runs, string(name))
					return nil
				},
			)
		},
	)
	if err != nil {
		return nil, err
	}

	sort.Strings(runs)

	return runs, nil
}

func (s *BoltDBDecisionStore) Count(run string) (int, error) {
	count := 0

	err := s.db.View(
		func(tx *bolt.Tx) error {
			bucket := tx.Bucket([]byte(run))
			if bucket == nil {
				return nil
			}

			count = bucket.Stats().KeyN

			return nil
		},
	)
	if err != nil {
		return -1, err
	}

	return count, nil
}

func (s *BoltDBDecisionStore) Close() error {
	return s.db.Close()
}
