package ui

import (
	"fmt"
	"sync"

	"github.com/eiannone/keyboard"
)

var (
	keyCh   chan rune
	openErr error
	once    sync.Once
)

// StartKeyEvents opens the raw keyboard and returns a channel of keypresses
// read without Enter. Esc arrives as 27 and Enter as '\r'; other special
// keys are dropped. Fails when no controlling terminal is available.
func StartKeyEvents() (<-chan rune, error) {
	once.Do(func() {
		if openErr = keyboard.Open(); openErr != nil {
			return
		}
		keyCh = make(chan rune, 64)
		go readKeys()
	})
	if openErr != nil {
		return nil, fmt.Errorf("keyboard: %w", openErr)
	}
	return keyCh, nil
}

func readKeys() {
	defer keyboard.Close()
	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			close(keyCh)
			return
		}
		switch {
		case key == keyboard.KeyEsc:
			char = 27
		case key == keyboard.KeyEnter:
			char = '\r'
		case key != 0:
			continue
		}
		select {
		case keyCh <- char:
		default:
		}
	}
}

// DrainKeys discards any keypresses already buffered so a stale key cannot
// trigger the next prompt.
func DrainKeys(ch <-chan rune) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
