// Package tokenizer counts tokens so the reasoning loop can keep its prompt
// inside the text generator's context window. It offers exact tiktoken
// counting and a character-based estimator that needs no downloaded data.
package tokenizer
