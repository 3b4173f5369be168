package wire

import "testing"

func TestMultiBulk(t *testing.T) {
	got := string(MultiBulk("SET", "k", "v"))
	want := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestAuth(t *testing.T) {
	if got := string(Auth("", "secret")); got != "*2\r\n$4\r\nAUTH\r\n$6\r\nsecret\r\n" {
		t.Fatalf("got %q", got)
	}
	got := string(Auth("default", "secret"))
	want := "*3\r\n$4\r\nAUTH\r\n$7\r\ndefault\r\n$6\r\nsecret\r\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSelect(t *testing.T) {
	if got := string(Select(3)); got != "*2\r\n$6\r\nSELECT\r\n$1\r\n3\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestPing(t *testing.T) {
	if got := string(Ping()); got != "*1\r\n$4\r\nPING\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestSentinelGetMasterAddr(t *testing.T) {
	got := string(SentinelGetMasterAddr("mymaster"))
	want := "*3\r\n$8\r\nSENTINEL\r\n$23\r\nget-master-addr-by-name\r\n$8\r\nmymaster\r\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	got := string(Subscribe("SUBSCRIBE", "a", "b"))
	want := "*3\r\n$9\r\nSUBSCRIBE\r\n$1\r\na\r\n$1\r\nb\r\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	got = string(Unsubscribe("UNSUBSCRIBE"))
	want = "*1\r\n$11\r\nUNSUBSCRIBE\r\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
