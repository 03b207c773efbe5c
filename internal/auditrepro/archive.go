package auditrepro

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

const archivePrefix = "audit:inputs:"

// RecordedInputs is everything needed to re-run a calculation exactly as it
// originally ran: the request and the snapshot resolved for each contract.
// Live market data is deliberately absent from reproduction.
type RecordedInputs struct {
	Request   model.CalculationRequest             `json:"request"`
	Snapshots map[string]*model.MarketDataSnapshot `json:"snapshots"` // by contract id
}

// InputArchive persists recorded inputs in an embedded badger store keyed by
// request natural key.
type InputArchive struct {
	db     *badger.DB
	logger *zap.Logger
}

// OpenInputArchive opens (or creates) the archive at dir. An empty dir opens
// an in-memory archive, used in tests.
func OpenInputArchive(dir string, logger *zap.Logger) (*InputArchive, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, commonerr.Wrap(commonerr.KindInternal, err, "open audit input archive")
	}
	return &InputArchive{db: db, logger: logger}, nil
}

// Record writes the inputs for a completed request. Existing entries are not
// overwritten: the first recording wins, which keeps reproduction anchored to
// the original run.
func (a *InputArchive) Record(requestID string, inputs RecordedInputs) error {
	key := []byte(archivePrefix + requestID)
	return a.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return nil
		}
		data, err := json.Marshal(inputs)
		if err != nil {
			return commonerr.Wrap(commonerr.KindInternal, err, "marshal recorded inputs for %s", requestID)
		}
		return txn.Set(key, data)
	})
}

// Load retrieves the recorded inputs for a request.
func (a *InputArchive) Load(requestID string) (*RecordedInputs, error) {
	var inputs RecordedInputs
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(archivePrefix + requestID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return commonerr.E(commonerr.KindNotFound, "no recorded inputs for request %s", requestID)
			}
			return commonerr.Wrap(commonerr.KindInternal, err, "read recorded inputs for %s", requestID)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &inputs)
		})
	})
	if err != nil {
		return nil, err
	}
	return &inputs, nil
}

// Close releases the archive.
func (a *InputArchive) Close() error {
	return a.db.Close()
}
