// Package integration drives the relay end to end through a real
// httptest.Server and gorilla/websocket dialer, the way the teacher's
// tests/fixtures harness drove its scenarios, but against the new
// protocol and with a fake speech pipeline standing in for the network.
package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/classrelay/relay/internal/classroom"
	"github.com/classrelay/relay/internal/fanout"
	"github.com/classrelay/relay/internal/handlers"
	"github.com/classrelay/relay/internal/router"
	"github.com/classrelay/relay/internal/session"
	"github.com/classrelay/relay/internal/testutil"
	relayws "github.com/classrelay/relay/internal/websocket"
	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

// fakePipeline lets a scenario inject a failure for one target language
// while every other leg keeps translating normally (spec.md §8 scenario
// 4's partial-failure isolation check).
type fakePipeline struct {
	failLanguage string
}

func (p fakePipeline) Translate(_ context.Context, _, targetLang, text, _ string) (interfaces.TranslationResult, error) {
	if targetLang == p.failLanguage {
		return interfaces.TranslationResult{}, errTranslationFailed
	}
	return interfaces.TranslationResult{TranslatedText: "[" + targetLang + "] " + text}, nil
}

func (p fakePipeline) Synthesize(_ context.Context, text, _, _ string) (interfaces.SynthesisResult, error) {
	return interfaces.SynthesisResult{Audio: interfaces.AudioArtifact{ClientSpeech: true}}, nil
}

type errString string

func (e errString) Error() string { return string(e) }

const errTranslationFailed = errString("translation leg failed")

// harness assembles a full relay stack in-process, backed by the in-memory
// fake store rather than SQLite, and serves it over a real WebSocket
// listener so scenarios exercise the actual wire protocol.
type harness struct {
	t          *testing.T
	repo       *testutil.FakeStore
	registry   *relayws.Registry
	sessions   *session.Service
	classrooms *classroom.Service
	server     *httptest.Server
	wsURL      string
}

func newHarness(t *testing.T, drainGrace, codeTTL time.Duration, pipeline interfaces.SpeechPipeline) *harness {
	t.Helper()

	repo := testutil.NewFakeStore()
	registry := relayws.NewRegistry()
	sessions := session.NewService(repo, drainGrace)
	classrooms := classroom.NewService(repo, codeTTL)
	fanoutSvc := fanout.NewService(registry, pipeline, repo)

	deps := &handlers.Deps{
		Registry:  registry,
		Classroom: classrooms,
		Sessions:  sessions,
		Fanout:    fanoutSvc,
		Repo:      repo,
		Speech:    pipeline,
	}

	rtr := router.NewRouter(repo)
	rtr.Register(types.TypeRegister, deps.Register)
	rtr.Register(types.TypeTranscription, deps.Transcription)
	rtr.Register(types.TypeAudio, deps.Audio)
	rtr.Register(types.TypeTTSRequest, deps.TTSRequest)
	rtr.Register(types.TypeSettings, deps.Settings)
	rtr.Register(types.TypePing, deps.Ping)
	rtr.Register(types.TypePong, deps.Pong)

	h := relayws.NewHandler(registry, rtr, sessions, classrooms)
	server := httptest.NewServer(http.HandlerFunc(h.ServeHTTP))
	t.Cleanup(server.Close)

	return &harness{
		t:          t,
		repo:       repo,
		registry:   registry,
		sessions:   sessions,
		classrooms: classrooms,
		server:     server,
		wsURL:      "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

// testClient is a thin wrapper around a dialed connection that buffers
// every inbound frame so assertions can poll for a particular message
// without racing the server's delivery goroutines.
type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	msgs chan map[string]interface{}
}

func (h *harness) dial() *testClient {
	h.t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL, nil)
	if err != nil {
		h.t.Fatalf("dial failed: %v", err)
	}

	c := &testClient{t: h.t, conn: conn, msgs: make(chan map[string]interface{}, 32)}
	h.t.Cleanup(func() { _ = conn.Close() })

	go func() {
		for {
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				close(c.msgs)
				return
			}
			c.msgs <- msg
		}
	}()
	return c
}

func (c *testClient) send(frame interface{}) {
	c.t.Helper()
	if err := c.conn.WriteJSON(frame); err != nil {
		c.t.Fatalf("write failed: %v", err)
	}
}

// await blocks until a buffered message satisfies match, or fails the
// test after timeout. Non-matching messages are discarded.
func (c *testClient) await(timeout time.Duration, match func(map[string]interface{}) bool) map[string]interface{} {
	c.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case msg, ok := <-c.msgs:
			if !ok {
				c.t.Fatal("connection closed before expected message arrived")
			}
			if match(msg) {
				return msg
			}
		case <-deadline:
			c.t.Fatal("timed out waiting for expected message")
		}
	}
}

func (c *testClient) awaitType(timeout time.Duration, frameType string) map[string]interface{} {
	return c.await(timeout, func(m map[string]interface{}) bool {
		t, _ := m["type"].(string)
		return t == frameType
	})
}

func registerTeacher(c *testClient, teacherID, languageCode string) string {
	c.send(types.RegisterFrame{Role: "teacher", LanguageCode: languageCode, TeacherID: teacherID})
	c.awaitType(2*time.Second, types.TypeConnection)
	c.awaitType(2*time.Second, types.TypeRegister)
	codeMsg := c.awaitType(2*time.Second, types.TypeClassroomCode)
	return codeMsg["code"].(string)
}

func registerStudent(c *testClient, code, languageCode string) {
	c.send(types.RegisterFrame{Role: "student", LanguageCode: languageCode, ClassroomCode: code})
	c.awaitType(2*time.Second, types.TypeConnection)
	c.awaitType(2*time.Second, types.TypeRegister)
}
