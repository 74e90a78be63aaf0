package config

import "codejudge/internal/judge/sandbox/profile"

// DefaultLanguages returns the built-in Python, Java, C++ and C definitions.
func DefaultLanguages() []profile.LanguageSpec {
	return []profile.LanguageSpec{
		{
			ID:         "python",
			Name:       "Python",
			Kind:       profile.KindInterpreted,
			SourceFile: "{id}.py",
			RunCmdTpl:  "python3 {src}",
		},
		{
			ID:            "java",
			Name:          "Java",
			Kind:          profile.KindEntryPoint,
			SourceFile:    "{entry}.java",
			BinaryFile:    "{entry}.class",
			EntryPoint:    "Main",
			CompileCmdTpl: "javac -d {dir} {src}",
			RunCmdTpl:     "java -cp {dir} {entry}",
		},
		{
			ID:            "cpp",
			Name:          "C++",
			Kind:          profile.KindNative,
			SourceFile:    "{id}.cpp",
			BinaryFile:    "{id}.exe",
			CompileCmdTpl: "g++ {src} -o {bin}",
			RunCmdTpl:     "{bin}",
		},
		{
			ID:            "c",
			Name:          "C",
			Kind:          profile.KindNative,
			SourceFile:    "{id}.c",
			BinaryFile:    "{id}.exe",
			CompileCmdTpl: "gcc {src} -o {bin}",
			RunCmdTpl:     "{bin}",
		},
	}
}
