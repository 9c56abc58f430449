// Package publish implements the Published stage: the translated article is
// rendered as Telegram HTML and posted to the configured chat.
//
// Telegram's HTML parse mode accepts only a handful of tags, so headings
// become bold lines, paragraphs are separated by blank lines, and everything
// that is not text, emphasis, or a link is dropped. Messages are capped at
// 4096 UTF-16 code units after entity parsing; the article body is cut at a
// block boundary (or mid-block as a last resort) and ends with an ellipsis so
// the date and source link always fit.
//
// The stage artifact is a JSON receipt of the sent message.
package publish
