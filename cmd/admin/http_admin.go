package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	gameID := fs.String("game", "", "game id")
	_ = fs.Parse(args)
	requireGame(*gameID)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/games/" + url.PathEscape(*gameID)
	do(http.MethodGet, u, 5*time.Second)
}

// resolveCmd forces the current turn of a running game. The server only accepts it from
// loopback.
func resolveCmd(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	gameID := fs.String("game", "", "game id")
	force := fs.Bool("force", true, "resolve even if humans have not ended the turn")
	_ = fs.Parse(args)
	requireGame(*gameID)

	u := fmt.Sprintf("%s/v1/games/%s/resolve?force=%v", strings.TrimRight(strings.TrimSpace(*baseURL), "/"), url.PathEscape(*gameID), *force)
	do(http.MethodPost, u, 10*time.Second)
}

func do(method, u string, timeout time.Duration) {
	req, _ := http.NewRequest(method, u, nil)
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
