package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/vovakirdan/wireroom-server/internal/proto"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	slot := flag.Uint64("slot", 0, "identity slot sent with the handshake")
	room := flag.String("room", "lobby", "room id to join")
	text := flag.String("text", "hello from smoke test", "chat message to send after joining")
	interactive := flag.Bool("stdin", false, "send every stdin line as a chat message")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run (ignored with -stdin)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if !*interactive {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	w := wire.NewWriter()
	proto.WriteHandshake(w, *slot)
	proto.WriteJoin(w, *room, nil)
	if *text != "" && !*interactive {
		proto.WriteChat(w, *text)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, w.Bytes()); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if *interactive {
		go sendLines(ctx, conn)
	}

	for {
		typ, frame, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if typ != websocket.MessageBinary {
			continue
		}
		records, err := proto.DecodeFrame(frame)
		for _, rec := range records {
			printRecord(rec)
		}
		if err != nil {
			fmt.Printf("  (undecodable tail: %v)\n", err)
		}
	}
}

func sendLines(ctx context.Context, conn *websocket.Conn) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		w := wire.NewWriter()
		proto.WriteChat(w, line)
		if err := conn.Write(ctx, websocket.MessageBinary, w.Bytes()); err != nil {
			log.Printf("send: %v", err)
			return
		}
	}
}

func printRecord(rec proto.Record) {
	switch rec.Op {
	case proto.OutAck:
		fmt.Printf("ack: identity=%s name=%q color=%s\n", rec.Ack.Identity, rec.Ack.Name, rec.Ack.Color)
	case proto.OutSnapshot:
		s := rec.Snapshot
		fmt.Printf("snapshot: room=%q self=%d members=%d history=%d\n", s.Room.ID, s.Self, len(s.Members), len(s.Chat))
		for _, e := range s.Chat {
			fmt.Printf("  [%d] %s\n", e.Participant, e.Text)
		}
	case proto.OutPong:
		fmt.Printf("pong: %d\n", rec.PongMillis)
	case proto.OutUpdates:
		for _, m := range rec.Members {
			name := ""
			if m.Name != nil {
				name = *m.Name
			}
			fmt.Printf("update: participant=%d name=%q\n", m.ID, name)
		}
	case proto.OutRemovals:
		fmt.Printf("removed: %v\n", rec.Removed)
	case proto.OutDirectory:
		fmt.Printf("directory: incremental=%t rooms=%d removed=%v\n", rec.Directory.Incremental, len(rec.Directory.Rooms), rec.Directory.Removed)
	case proto.OutModeration:
		fmt.Printf("notice: kind=%d millis=%d room=%q\n", rec.Notice.Kind, rec.Notice.Millis, rec.Notice.Room)
	case proto.OutChat:
		fmt.Printf("chat [%d]: %s\n", rec.Chat.Participant, rec.Chat.Text)
	case proto.OutNotes:
		fmt.Printf("notes [%d]: %d notes\n", rec.Notes.Participant, len(rec.Notes.Notes))
	case proto.OutSettings:
		fmt.Printf("settings: %+v\n", rec.Settings)
	case proto.OutCrown:
		fmt.Printf("crown: holder=%d dropped=%t\n", rec.Crown.HolderID, rec.Crown.Dropped)
	default:
		fmt.Printf("record 0x%02x\n", rec.Op)
	}
}
