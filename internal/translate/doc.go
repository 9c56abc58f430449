// Package translate implements the Translated stage. The extracted HTML is
// sent to an OpenAI-compatible chat completion endpoint and the reply is
// reduced to the HTML document the model was asked to produce.
//
// Models often wrap the document in commentary or Markdown fences. The reply
// is searched, in order, for a full HTML document, an ```html fenced block,
// and any fenced block; the first match wins. The result must still look like
// an HTML document or the item fails and is retried on the next tick.
package translate
