// Package witinfo builds typeinfo metadata from WIT declarations.
//
// WIT (the WebAssembly Interface Type language) describes functions and
// types independently of any binary layout. A Converter maps those types
// onto the native descriptors nativecall marshals:
//
//	bool, s8..u64, f32, f64   scalar tags
//	char                      gunichar
//	string                    utf8, owned by the receiver of a result
//	list<T>                   C array with a trailing length parameter;
//	                          GArray when returned or nested
//	record, tuple             struct
//	enum                      enum stored in the smallest fitting integer
//	flags                     guint32 flags
//	variant                   discriminated union
//	option<T>                 nullable T (pointer types only)
//	result<T, E>              T plus the native error channel
//	resource, own, borrow     reference-counted object; own transfers it
//
// Named type definitions convert once per Converter and are registered in
// the repository under the converter's namespace.
package witinfo
