package goper

// Package goper provides:
//
// - PER-unaligned (ITU-T X.691) encoding and decoding through immutable codecs
// - A stable error model via Issues (path, code, message)
// - Bit-range metadata (Decoded) for byte-exact extraction of substructures
// - A declarative, JSON/YAML-serializable schema format compiled to codecs,
//   including a textual ASN.1 front end with lazy resolution of recursion
//
// Design policy:
// - Keep only public cross-cutting types in the root package; put machinery
//   under bitio/, codec/, schema/ and asn1/.
// - Codecs are immutable after construction and safe to share; buffers are
//   ephemeral per operation.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	reg, err := schema.RegistryFromJSON(data)
//	codecs, err := schema.BuildAll(reg)
//
//	buf := bitio.New()
//	err = codecs["Ticket"].Encode(buf, value)
//	wire := buf.Bytes()
//
//	node, err := codecs["Ticket"].DecodeWithMeta(bitio.FromBytes(wire))
//	plain := goper.StripMetadata(node)
