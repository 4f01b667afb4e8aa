package clickhouse

import (
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestOptions(t *testing.T) {
	o := options(ClientConfig{
		Host: "ch", Port: 9000, Database: "macopull", User: "default", Password: "pw",
		DialTimeout: 5 * time.Second, MaxExecTime: time.Minute, AsyncInsert: true, WaitForAsync: true,
	})
	if len(o.Addr) != 1 || o.Addr[0] != "ch:9000" {
		t.Fatalf("addr=%v", o.Addr)
	}
	if o.Auth.Database != "macopull" || o.Auth.Username != "default" || o.Auth.Password != "pw" {
		t.Fatalf("auth=%+v", o.Auth)
	}
	if o.Protocol != clickhouse.Native || o.DialTimeout != 5*time.Second {
		t.Fatalf("protocol/dial not applied: %+v", o)
	}
	if o.Settings["max_execution_time"] != 60 || o.Settings["async_insert"] != 1 || o.Settings["wait_for_async_insert"] != 1 {
		t.Fatalf("settings=%v", o.Settings)
	}
}

func TestOptionsHTTP(t *testing.T) {
	o := options(ClientConfig{Host: "ch", Port: 8123, Database: "d", User: "u", UseHTTP: true})
	if o.Protocol != clickhouse.HTTP {
		t.Fatalf("expected http protocol")
	}
	if _, ok := o.Settings["async_insert"]; ok {
		t.Fatalf("async_insert set without being enabled")
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}

func TestSignalTableDDL(t *testing.T) {
	stmts := SignalTableDDL("macopull", "maco_signals")
	if len(stmts) != 2 || !strings.Contains(stmts[1], "macopull.maco_signals") {
		t.Fatalf("unexpected ddl: %v", stmts)
	}
}
