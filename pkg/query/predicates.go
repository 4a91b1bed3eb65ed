package query

// evalPredicates filters a match through a pattern's built-in predicates.
// Predicate failures are not errors; they simply drop the match.
func evalPredicates(preds []compiledPredicate, match Match, text []byte) bool {
	for _, pred := range preds {
		if !evalPredicate(pred, match, text) {
			return false
		}
	}
	return true
}

func evalPredicate(pred compiledPredicate, match Match, text []byte) bool {
	captured := func(id uint16) (string, bool) {
		for _, capture := range match.Captures {
			if capture.Index == id {
				return string(capture.Node.Content(text)), true
			}
		}
		return "", false
	}

	value, ok := captured(pred.capture)
	if !ok {
		return false
	}

	switch pred.kind {
	case predEq, predNotEq:
		other := pred.value
		if pred.hasOther {
			var found bool
			other, found = captured(pred.otherCap)
			if !found {
				return false
			}
		}
		equal := value == other
		if pred.kind == predEq {
			return equal
		}
		return !equal

	case predMatch, predNotMatch:
		matched, err := pred.re.MatchString(value)
		if err != nil {
			return false
		}
		if pred.kind == predMatch {
			return matched
		}
		return !matched

	case predAnyOf, predNotAnyOf:
		found := false
		for _, candidate := range pred.values {
			if value == candidate {
				found = true
				break
			}
		}
		if pred.kind == predAnyOf {
			return found
		}
		return !found

	default:
		return true
	}
}
