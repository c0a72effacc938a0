package db

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"sourcing/models"

	"github.com/google/uuid"
)

// fields - указатели на служебные поля записи.
type fields struct {
	id      *string
	seq     *int64
	version *int
	created *time.Time
	updated *time.Time
}

type table[T any] struct {
	entity string
	rows   map[string]T
	meta   func(*T) fields
	clone  func(*T)
}

func newTable[T any](entity string, meta func(*T) fields, clone func(*T)) *table[T] {
	if clone == nil {
		clone = func(*T) {}
	}
	return &table[T]{entity: entity, rows: make(map[string]T), meta: meta, clone: clone}
}

// overlay буферизует записи транзакции поверх таблицы. expect хранит версию
// строки в базе на момент первой записи в транзакции (0 - новая строка).
type overlay[T any] struct {
	s      *MemStorage
	base   *table[T]
	staged map[string]T
	expect map[string]int
}

func newOverlay[T any](s *MemStorage, base *table[T]) *overlay[T] {
	return &overlay[T]{s: s, base: base, staged: make(map[string]T), expect: make(map[string]int)}
}

func (o *overlay[T]) copyOf(v T) T {
	o.base.clone(&v)
	return v
}

func (o *overlay[T]) get(id string) (T, bool) {
	if v, ok := o.staged[id]; ok {
		return o.copyOf(v), true
	}
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	v, ok := o.base.rows[id]
	if !ok {
		return v, false
	}
	return o.copyOf(v), true
}

func (o *overlay[T]) find(id string) (*T, error) {
	v, ok := o.get(id)
	if !ok {
		return nil, models.NotFound(o.base.entity, id)
	}
	return &v, nil
}

func (o *overlay[T]) create(v *T) error {
	m := o.base.meta(v)
	if *m.id == "" {
		*m.id = uuid.NewString()
	}
	if _, exists := o.get(*m.id); exists {
		return fmt.Errorf("%w: %s %s already exists", models.ErrConflict, o.base.entity, *m.id)
	}
	now := o.s.now()
	*m.seq = o.s.seq.Add(1)
	*m.version = 1
	if m.created.IsZero() {
		*m.created = now
	}
	if m.updated != nil && m.updated.IsZero() {
		*m.updated = *m.created
	}
	o.staged[*m.id] = o.copyOf(*v)
	o.expect[*m.id] = 0
	return nil
}

func (o *overlay[T]) update(v *T) error {
	m := o.base.meta(v)
	cur, ok := o.get(*m.id)
	if !ok {
		return models.NotFound(o.base.entity, *m.id)
	}
	cm := o.base.meta(&cur)
	if *cm.version != *m.version {
		return fmt.Errorf("%w: %s %s is at version %d, update based on %d",
			models.ErrConflict, o.base.entity, *m.id, *cm.version, *m.version)
	}
	if _, seen := o.expect[*m.id]; !seen {
		o.expect[*m.id] = *cm.version
	}
	*m.version++
	*m.seq = *cm.seq
	*m.created = *cm.created
	if m.updated != nil {
		*m.updated = o.s.now()
	}
	o.staged[*m.id] = o.copyOf(*v)
	return nil
}

func (o *overlay[T]) list(match func(*T) bool, page Page) []T {
	out := make([]T, 0)
	o.s.mu.RLock()
	for id, v := range o.base.rows {
		if sv, ok := o.staged[id]; ok {
			v = sv
		}
		if match(&v) {
			out = append(out, o.copyOf(v))
		}
	}
	o.s.mu.RUnlock()
	for id, v := range o.staged {
		if o.expect[id] == 0 && match(&v) {
			out = append(out, o.copyOf(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := o.base.meta(&out[i]), o.base.meta(&out[j])
		if !mi.created.Equal(*mj.created) {
			return mi.created.After(*mj.created)
		}
		return *mi.seq > *mj.seq
	})
	return paginate(out, page)
}

// verify вызывается под s.mu.Lock перед применением.
func (o *overlay[T]) verify() error {
	for id, exp := range o.expect {
		cur, ok := o.base.rows[id]
		if exp == 0 {
			if ok {
				return fmt.Errorf("%w: %s %s already exists", models.ErrConflict, o.base.entity, id)
			}
			continue
		}
		if !ok || *o.base.meta(&cur).version != exp {
			return fmt.Errorf("%w: %s %s changed by another writer", models.ErrConflict, o.base.entity, id)
		}
	}
	return nil
}

func (o *overlay[T]) apply() {
	for id, v := range o.staged {
		o.base.rows[id] = v
	}
}

func paginate[T any](rows []T, page Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(rows) {
			return rows[:0]
		}
		rows = rows[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(rows) {
		rows = rows[:page.Limit]
	}
	return rows
}

// keyedMutex - мьютекс на ключ (id RFQ), записи удаляются когда никто не ждет.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
