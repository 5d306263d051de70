package registry

import (
	"reflect"
	"sync"
	"testing"
)

type widget struct {
	ID   int    `po:"id,primaryKey,serial"`
	Name string `po:"name,text,notNull"`
}

type gadget struct {
	ID       int `po:"id,primaryKey,serial"`
	WidgetID int `po:"widget_id,notNull,fk:widget.id,onDelete:cascade"`
}

type widgetClone struct {
	ID int `po:"id,primaryKey"`
}

func (widgetClone) TableName() string { return "widget" }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(widget{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&widget{}); err != nil {
		t.Fatalf("re-registering should be a no-op, got %v", err)
	}

	table, err := r.Get(reflect.TypeOf(&widget{}))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if table.Name != "widget" {
		t.Errorf("table name = %q", table.Name)
	}

	if _, err := r.GetByName("widget"); err != nil {
		t.Errorf("GetByName failed: %v", err)
	}
	if _, err := r.GetByName("missing"); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestRegistry_DuplicateTableName(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(widget{})

	if err := r.Register(widgetClone{}); err == nil {
		t.Error("expected conflict on shared table name")
	}
	if err := r.Register(nil); err == nil {
		t.Error("expected error for nil model")
	}
}

func TestRegistry_OrderAndClear(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(widget{}, gadget{})

	all := r.All()
	if len(all) != 2 || all[0].Name != "widget" || all[1].Name != "gadget" {
		t.Fatalf("All() should keep registration order, got %v", all)
	}

	r.Clear()
	if len(r.All()) != 0 {
		t.Error("Clear should empty the registry")
	}
}

func TestRegistry_GetOrRegisterConcurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.GetOrRegister(gadget{}); err != nil {
				t.Errorf("GetOrRegister failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(r.All()) != 1 {
		t.Errorf("expected exactly one registration, got %d", len(r.All()))
	}
}
