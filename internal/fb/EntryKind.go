package fb

import "strconv"

type EntryKind byte

const (
	EntryKindSourceFile       EntryKind = 0
	EntryKindCompiledArtifact EntryKind = 1
	EntryKindNativeLibrary    EntryKind = 2
	EntryKindPackageMarker    EntryKind = 3
	EntryKindPlainResource    EntryKind = 4
)

var EnumNamesEntryKind = map[EntryKind]string{
	EntryKindSourceFile:       "SourceFile",
	EntryKindCompiledArtifact: "CompiledArtifact",
	EntryKindNativeLibrary:    "NativeLibrary",
	EntryKindPackageMarker:    "PackageMarker",
	EntryKindPlainResource:    "PlainResource",
}

var EnumValuesEntryKind = map[string]EntryKind{
	"SourceFile":       EntryKindSourceFile,
	"CompiledArtifact": EntryKindCompiledArtifact,
	"NativeLibrary":    EntryKindNativeLibrary,
	"PackageMarker":    EntryKindPackageMarker,
	"PlainResource":    EntryKindPlainResource,
}

func (v EntryKind) String() string {
	if s, ok := EnumNamesEntryKind[v]; ok {
		return s
	}
	return "EntryKind(" + strconv.FormatInt(int64(v), 10) + ")"
}
