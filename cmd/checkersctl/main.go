package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/checkers-server/pkg/checkersdto"
	"github.com/park285/checkers-server/pkg/client"
)

const usage = `usage: checkersctl <command> [args]

  health
  create <opponentId>          opponent 0 plays the bot
  show <gameId>
  moves <gameId>
  legal <gameId>
  move <gameId> <fromRow> <fromCol> <toRow> <toCol>
  resign <gameId>
  join | leave | check
  wait                         join and poll check until matched or timed out
  history [userId] [limit]
  live [userId]

env: CHECKERS_URL (default http://localhost:8080), CHECKERS_USER_ID`

func main() {
	baseURL := os.Getenv("CHECKERS_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	userID, _ := strconv.ParseInt(strings.TrimSpace(os.Getenv("CHECKERS_USER_ID")), 10, 64)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	c := client.New(baseURL, userID, client.WithTimeout(8*time.Second))
	if err := run(c, userID, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func run(c *client.Client, userID int64, cmd string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch strings.ToLower(cmd) {
	case "health":
		if err := c.Health(ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	case "create":
		if len(args) < 1 {
			return fmt.Errorf("opponent id required")
		}
		opp, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad opponent id: %w", err)
		}
		id, err := c.CreateGame(ctx, opp)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	case "show":
		if len(args) < 1 {
			return fmt.Errorf("game id required")
		}
		g, err := c.Game(ctx, args[0])
		if err != nil {
			return err
		}
		printBoard(g)
		return nil
	case "moves":
		if len(args) < 1 {
			return fmt.Errorf("game id required")
		}
		ms, err := c.Moves(ctx, args[0])
		if err != nil {
			return err
		}
		return dump(ms)
	case "legal":
		if len(args) < 1 {
			return fmt.Errorf("game id required")
		}
		ms, err := c.LegalMoves(ctx, args[0])
		if err != nil {
			return err
		}
		return dump(ms)
	case "move":
		if len(args) < 5 {
			return fmt.Errorf("usage: move <gameId> <fromRow> <fromCol> <toRow> <toCol>")
		}
		coords := make([]int, 4)
		for i := range coords {
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("bad coordinate %q", args[i+1])
			}
			coords[i] = n
		}
		res, err := c.Move(ctx, args[0], checkersdto.MoveRequest{FromRow: coords[0], FromCol: coords[1], ToRow: coords[2], ToCol: coords[3]})
		if err != nil {
			return err
		}
		if res.Reply != nil {
			fmt.Printf("bot: (%d,%d)-(%d,%d)\n", res.Reply.From.Row, res.Reply.From.Col, res.Reply.To.Row, res.Reply.To.Col)
		}
		printBoard(res.GameState)
		return nil
	case "resign":
		if len(args) < 1 {
			return fmt.Errorf("game id required")
		}
		g, err := c.Resign(ctx, args[0])
		if err != nil {
			return err
		}
		printBoard(g)
		return nil
	case "join":
		return c.Join(ctx)
	case "leave":
		return c.Leave(ctx)
	case "check":
		res, err := c.Check(ctx)
		if err != nil {
			return err
		}
		return dump(res)
	case "wait":
		return wait(ctx, c)
	case "history":
		uid, limit := userID, 0
		if len(args) >= 1 {
			uid, _ = strconv.ParseInt(args[0], 10, 64)
		}
		if len(args) >= 2 {
			limit, _ = strconv.Atoi(args[1])
		}
		hs, err := c.History(ctx, uid, limit)
		if err != nil {
			return err
		}
		return dump(hs)
	case "live":
		uid := userID
		if len(args) >= 1 {
			uid, _ = strconv.ParseInt(args[0], 10, 64)
		}
		gs, err := c.LiveGames(ctx, uid)
		if err != nil {
			return err
		}
		return dump(gs)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command")
	}
}

func wait(ctx context.Context, c *client.Client) error {
	if err := c.Join(ctx); err != nil {
		return err
	}
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		res, err := c.Check(ctx)
		if err != nil {
			return err
		}
		switch {
		case res.Matched:
			fmt.Println(res.GameID)
			return nil
		case res.TimedOut:
			return fmt.Errorf("no opponent found")
		}
		log.Printf("waiting %ds", res.WaitSeconds)
		select {
		case <-ctx.Done():
			_ = c.Leave(context.Background())
			return ctx.Err()
		case <-t.C:
		}
	}
}

func printBoard(g *checkersdto.GameState) {
	if g == nil {
		return
	}
	fmt.Printf("game %s  %d vs %d  status=%s turn=%d moves=%d\n", g.GameID, g.Player1ID, g.Player2ID, g.Status, g.CurrentPlayer, g.MoveCount)
	fmt.Println("   01234567")
	for r, row := range g.Board {
		fmt.Printf("%d  %s\n", r, row)
	}
	if g.WinnerID != nil {
		fmt.Printf("winner %d by %s\n", *g.WinnerID, g.FinishMethod)
	}
}

func dump(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
