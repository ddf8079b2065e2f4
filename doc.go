// Package sqlpos turns SQL written with :named parameters into SQL with positional $1, $2, ... markers plus the matching ordered argument list. Convert numbers parameters by the order of the supplied params; Prepare rewrites a statement once (numbering by an explicit name list or by first appearance) and returns an immutable *Prepared that binds values as many times as needed. A :name right after another colon, as in a ::type cast, is never rewritten.

package sqlpos
