package ffmpeg

// Codec names used by the conversion strategies.
const (
	CodecCopy = "copy"
	CodecH264 = "libx264"
	CodecAAC  = "aac"
)

// TranscodeArgs builds a single-input encode:
//
//	-y -i <in> -c:v <vcodec> -c:a <acodec> <out>
func TranscodeArgs(in, out, vcodec, acodec string) []string {
	return []string{"-y", "-i", in, "-c:v", vcodec, "-c:a", acodec, out}
}

// ConcatArgs builds a concat-demuxer pass over a manifest:
//
//	-y -f concat -safe 0 -i <manifest> -c:v <vcodec> -c:a <acodec> <out>
func ConcatArgs(manifest, out, vcodec, acodec string) []string {
	return []string{"-y", "-f", "concat", "-safe", "0", "-i", manifest, "-c:v", vcodec, "-c:a", acodec, out}
}
