package event

import (
	"fmt"
	"unsafe"
)

// handlerPtr extracts a comparable identity for a Handler value so the
// registry can detect duplicate registrations. Go forbids comparing func
// values directly, so the address of the func value itself is used: copies
// of one Handler share it, while two closures built from the same function
// literal (which share a code pointer) do not.
func handlerPtr(h Handler) uintptr {
	if h == nil {
		return 0
	}
	return uintptr(*(*unsafe.Pointer)(unsafe.Pointer(&h)))
}

func toString(v any) string {
	return fmt.Sprintf("%v", v)
}
