package kv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// 不支持按键过期的后端把过期时间写在值前面：
// ttlMagic | 8 字节大端 unix 纳秒 | 原始值.
const ttlMagic = "\x00cvttl\x01"

const ttlHeader = len(ttlMagic) + 8

var errTTLCorrupt = errors.New("kv: corrupt ttl header")

// wrapTTL 返回新分配的切片，ttl<=0 时只复制原值.
func wrapTTL(value []byte, ttl time.Duration, now time.Time) []byte {
	if ttl <= 0 {
		return bytes.Clone(value)
	}

	out := make([]byte, ttlHeader+len(value))
	copy(out, ttlMagic)
	binary.BigEndian.PutUint64(out[len(ttlMagic):], uint64(now.Add(ttl).UnixNano()))
	copy(out[ttlHeader:], value)

	return out
}

// unwrapTTL 返回原始值与是否已过期，返回的切片与 b 共享底层数组.
func unwrapTTL(b []byte, now time.Time) ([]byte, bool, error) {
	if !bytes.HasPrefix(b, []byte(ttlMagic)) {
		return b, false, nil
	}

	if len(b) < ttlHeader {
		return nil, false, errTTLCorrupt
	}

	exp := int64(binary.BigEndian.Uint64(b[len(ttlMagic):ttlHeader]))
	if now.UnixNano() >= exp {
		return nil, true, nil
	}

	return b[ttlHeader:], false, nil
}
