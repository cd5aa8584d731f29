// Package prof captures pprof profiles around a measured section of code.
//
// It exists for the benchmark client, which profiles the request path while
// it drives the device:
//
//	s, err := prof.Start(prof.Options{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// Empty paths disable the corresponding profile, so a zero [Options] value
// yields a session whose Stop does nothing.
package prof
