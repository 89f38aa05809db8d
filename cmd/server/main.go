package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/CK6170/Loadcurve-go/internal/server"
)

func main() {
	var (
		addr = flag.String("addr", "127.0.0.1:8080", "http listen address")
	)
	flag.Parse()

	s := server.New()
	log.Printf("Serving on http://%s", *addr)
	log.Printf("UI:        http://%s/", *addr)
	log.Printf("WS stream: ws://%s/ws/acquire", *addr)
	if err := http.ListenAndServe(*addr, s.Handler()); err != nil {
		log.Fatal(err)
	}
}
