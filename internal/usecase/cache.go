package usecase

import (
	"context"
	"encoding"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strings"
	"time"

	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
)

// cacheKeyPrefix keeps answer entries apart from rate counters when both
// share one store.
const cacheKeyPrefix = "answer:"

// AnswerCache maps a raw query to a previously computed answer. It never
// returns an error: faults read as a miss and failed writes are dropped.
type AnswerCache struct {
	store  repository.KVStore
	logger *slog.Logger
}

func NewAnswerCache(store repository.KVStore) *AnswerCache {
	return &AnswerCache{
		store:  store,
		logger: slog.Default().With("component", "answer-cache"),
	}
}

func (c *AnswerCache) Get(ctx context.Context, query string) (*entity.AnswerResult, bool) {
	raw, found, err := c.store.Get(ctx, cacheKeyPrefix+query)
	if err != nil {
		c.logger.Error("cache read failed", "err", fmt.Errorf("%w: %w", entity.ErrCacheFault, err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	result, err := decodeAnswer(raw)
	if err != nil {
		c.logger.Error("cache entry undecodable", "err", fmt.Errorf("%w: %w", entity.ErrCacheFault, err))
		return nil, false
	}
	c.logger.Info("cache hit", "query", query)
	return result, true
}

func (c *AnswerCache) Put(ctx context.Context, query string, result *entity.AnswerResult, ttl time.Duration) {
	raw, err := encodeAnswer(result)
	if err != nil {
		c.logger.Error("cache entry unencodable", "err", fmt.Errorf("%w: %w", entity.ErrCacheFault, err))
		return
	}
	if err := c.store.SetEx(ctx, cacheKeyPrefix+query, raw, ttl); err != nil {
		c.logger.Error("cache write failed", "err", fmt.Errorf("%w: %w", entity.ErrCacheFault, err))
		return
	}
	c.logger.Info("cached answer", "query", query, "ttl", ttl)
}

func encodeAnswer(result *entity.AnswerResult) ([]byte, error) {
	return json.Marshal(toPlain(result))
}

func decodeAnswer(raw []byte) (*entity.AnswerResult, error) {
	var result entity.AnswerResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	if result.ToolOutputs == nil {
		result.ToolOutputs = []entity.ToolInvocation{}
	}
	return &result, nil
}

// toPlain converts v into maps, slices and scalars only. URL-like and
// text-marshalable values become their string form so tool responses holding
// them come back from the cache as plain strings.
func toPlain(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, json.Number:
		return t
	case []byte:
		return string(t)
	case url.URL:
		return t.String()
	case *url.URL:
		if t == nil {
			return nil
		}
		return t.String()
	case map[string]any:
		if t == nil {
			return nil
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = toPlain(val)
		}
		return out
	case []any:
		if t == nil {
			return nil
		}
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = toPlain(val)
		}
		return out
	case encoding.TextMarshaler:
		if text, err := t.MarshalText(); err == nil {
			return string(text)
		}
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return toPlain(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = toPlain(iter.Value().Interface())
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = toPlain(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		return structToPlain(rv)
	}
	return fmt.Sprint(v)
}

// structToPlain decomposes a struct into a map keyed the way encoding/json
// would key it.
func structToPlain(rv reflect.Value) map[string]any {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		omitEmpty := false
		if tag, ok := field.Tag.Lookup("json"); ok {
			if tag == "-" {
				continue
			}
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		if omitEmpty && (fv.Kind() == reflect.Slice || fv.Kind() == reflect.Map) && fv.Len() == 0 {
			continue
		}
		out[name] = toPlain(fv.Interface())
	}
	return out
}
