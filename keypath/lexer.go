package keypath

import "unicode/utf8"

type charClass uint8

const (
	classEOF charClass = iota
	classIdent
	classZero
	classNumber
	classDot
	classOpenBracket
	classCloseBracket
	classSingleQuote
	classDoubleQuote
	classSpace
	classElse
)

func classify(c rune, eof bool) charClass {
	if eof {
		return classEOF
	}
	switch c {
	case '[':
		return classOpenBracket
	case ']':
		return classCloseBracket
	case '.':
		return classDot
	case '"':
		return classDoubleQuote
	case '\'':
		return classSingleQuote
	case '0':
		return classZero
	case '_', '$':
		return classIdent
	case ' ', '\t', '\n', '\r', '\u00a0', '\ufeff', '\u2028', '\u2029':
		return classSpace
	}
	if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
		return classIdent
	}
	if '1' <= c && c <= '9' {
		return classNumber
	}
	return classElse
}

type parseState uint8

const (
	stateError parseState = iota
	stateBeforePath
	stateInPath
	stateBeforeIdent
	stateInIdent
	stateBeforeElement
	stateAfterZero
	stateInIndex
	stateInSingleQuote
	stateInDoubleQuote
	stateAfterElement
	stateAfterPath
)

type action uint8

const (
	actionNone action = iota
	actionAppend
	// actionOpen starts an empty key so quoted "" survives as a key.
	actionOpen
	actionPush
)

type transition struct {
	next   parseState
	action action
}

// machine maps each state to its transitions. A class missing from a state
// falls back to that state's classElse entry, then to stateError.
var machine = map[parseState]map[charClass]transition{
	stateBeforePath: {
		classSpace:       {stateBeforePath, actionNone},
		classIdent:       {stateInIdent, actionAppend},
		classOpenBracket: {stateBeforeElement, actionNone},
		classEOF:         {stateAfterPath, actionNone},
	},
	stateInPath: {
		classSpace:       {stateInPath, actionNone},
		classDot:         {stateBeforeIdent, actionNone},
		classOpenBracket: {stateBeforeElement, actionNone},
		classEOF:         {stateAfterPath, actionNone},
	},
	stateBeforeIdent: {
		classSpace: {stateBeforeIdent, actionNone},
		classIdent: {stateInIdent, actionAppend},
	},
	stateInIdent: {
		classIdent:       {stateInIdent, actionAppend},
		classZero:        {stateInIdent, actionAppend},
		classNumber:      {stateInIdent, actionAppend},
		classSpace:       {stateInPath, actionPush},
		classDot:         {stateBeforeIdent, actionPush},
		classOpenBracket: {stateBeforeElement, actionPush},
		classEOF:         {stateAfterPath, actionPush},
	},
	stateBeforeElement: {
		classSpace:       {stateBeforeElement, actionNone},
		classZero:        {stateAfterZero, actionAppend},
		classNumber:      {stateInIndex, actionAppend},
		classSingleQuote: {stateInSingleQuote, actionOpen},
		classDoubleQuote: {stateInDoubleQuote, actionOpen},
	},
	stateAfterZero: {
		classSpace:        {stateAfterElement, actionPush},
		classCloseBracket: {stateInPath, actionPush},
	},
	stateInIndex: {
		classZero:         {stateInIndex, actionAppend},
		classNumber:       {stateInIndex, actionAppend},
		classSpace:        {stateAfterElement, actionNone},
		classCloseBracket: {stateInPath, actionPush},
	},
	stateInSingleQuote: {
		classSingleQuote: {stateAfterElement, actionNone},
		classEOF:         {stateError, actionNone},
		classElse:        {stateInSingleQuote, actionAppend},
	},
	stateInDoubleQuote: {
		classDoubleQuote: {stateAfterElement, actionNone},
		classEOF:         {stateError, actionNone},
		classElse:        {stateInDoubleQuote, actionAppend},
	},
	stateAfterElement: {
		classSpace:        {stateAfterElement, actionNone},
		classCloseBracket: {stateInPath, actionPush},
	},
}

func lookupTransition(state parseState, class charClass) transition {
	table := machine[state]
	if t, ok := table[class]; ok {
		return t
	}
	if t, ok := table[classElse]; ok {
		return t
	}
	return transition{next: stateError}
}

// parse runs the path state machine over input. It returns ok=false on any
// syntax error; callers map that to the invalid path. Key bytes are copied
// from input as they are, so quoted keys holding invalid UTF-8 survive.
func parse(input string) ([]string, bool) {
	keys := []string{}
	var key []byte
	building := false
	state := stateBeforePath

	for i := 0; ; {
		eof := i >= len(input)
		var c rune
		size := 0
		if !eof {
			c, size = utf8.DecodeRuneInString(input[i:])
		}

		// A backslash only escapes the enclosing quote character.
		if !eof && c == '\\' && i+1 < len(input) {
			next := input[i+1]
			if (state == stateInSingleQuote && next == '\'') || (state == stateInDoubleQuote && next == '"') {
				key = append(key, next)
				building = true
				i += 2
				continue
			}
		}

		t := lookupTransition(state, classify(c, eof))
		if t.next == stateError {
			return nil, false
		}
		state = t.next

		switch t.action {
		case actionAppend:
			key = append(key, input[i:i+size]...)
			building = true
		case actionOpen:
			key = key[:0]
			building = true
		case actionPush:
			if building {
				keys = append(keys, string(key))
				key = key[:0]
				building = false
			}
		}

		if state == stateAfterPath {
			return keys, true
		}
		if eof {
			return nil, false
		}
		i += size
	}
}
