package memory

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/w-h-a/triage/repository"
)

// memoryRepository keeps records in their stored (decimal) form so reads go
// through the same conversion a real backend forces on them.
type memoryRepository struct {
	options   repository.Options
	byPatient map[string]map[string]repository.Record
	mtx       sync.RWMutex
}

func (r *memoryRepository) Save(ctx context.Context, record repository.Record) (repository.Record, error) {
	stored, err := repository.ToDecimalRecord(record)
	if err != nil {
		return nil, repository.NewStorageError(repository.OperationPutItem, err.Error(), err)
	}

	stored = repository.Transform(stored, numberToDecimal).(repository.Record)

	patientId := record.PatientId()

	r.mtx.Lock()
	defer r.mtx.Unlock()

	items, ok := r.byPatient[patientId]
	if !ok {
		items = map[string]repository.Record{}
		r.byPatient[patientId] = items
	}

	items[slotKey(stored[repository.TimestampKey])] = stored

	return record, nil
}

func (r *memoryRepository) ListByPatient(ctx context.Context, patientId string, opts ...repository.ListOption) ([]repository.Record, error) {
	options := repository.NewListOptions(opts...)

	if options.Limit < 1 {
		return []repository.Record{}, nil
	}

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	candidates := make([]repository.Record, 0, len(r.byPatient[patientId]))
	for _, rec := range r.byPatient[patientId] {
		candidates = append(candidates, rec)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return compareKeys(candidates[i][repository.TimestampKey], candidates[j][repository.TimestampKey]) > 0
	})

	if len(candidates) > options.Limit {
		candidates = candidates[:options.Limit]
	}

	records := make([]repository.Record, 0, len(candidates))
	for _, rec := range candidates {
		records = append(records, repository.FromDecimalRecord(rec))
	}

	return records, nil
}

// slotKey keeps string and number sort keys apart, so "1" and 1 are two
// records the way they are two distinct attribute values in the store.
func slotKey(v any) string {
	if s, ok := v.(string); ok {
		return "S:" + s
	}
	if d, ok := toDecimal(v); ok {
		return "N:" + d.String()
	}
	return "X:" + fmt.Sprint(v)
}

// compareKeys orders sort keys the way the store does: strings by bytes,
// numbers by value. Numbers sort before strings when the two are mixed.
func compareKeys(a, b any) int {
	as, aIsString := a.(string)
	bs, bIsString := b.(string)

	switch {
	case aIsString && bIsString:
		return strings.Compare(as, bs)
	case aIsString:
		return 1
	case bIsString:
		return -1
	}

	ad, aOk := toDecimal(a)
	bd, bOk := toDecimal(b)
	if aOk && bOk {
		return ad.Cmp(bd)
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toDecimal(v any) (decimal.Decimal, bool) {
	if d, ok := v.(decimal.Decimal); ok {
		return d, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0), true
	}

	return decimal.Decimal{}, false
}

// numberToDecimal stores integers as decimals too, so every number reads
// back as int64 or float64 like it does from a real store.
func numberToDecimal(v any) any {
	if d, ok := toDecimal(v); ok {
		return d
	}
	return v
}

func NewRepository(opts ...repository.Option) *memoryRepository {
	options := repository.NewOptions(opts...)

	r := &memoryRepository{
		options:   options,
		byPatient: map[string]map[string]repository.Record{},
		mtx:       sync.RWMutex{},
	}

	return r
}
