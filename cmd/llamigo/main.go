// Command llamigo is a terminal chat client for llama.cpp and Gemini models.
package main

import "github.com/diogo/llamigo/internal/commands"

func main() {
	commands.Execute()
}
