// Package descriptor provides the in-memory model of an externally produced
// class description, its parser, and structural validation.
//
// Descriptions are produced by an offline class recovery tool and are
// read-only once parsed. JSON and YAML are both accepted, JSON being a
// subset of YAML 1.2.
//
// # Schema Overview
//
//	{
//	  "md5": "0123456789abcdef0123456789abcdef",   // optional
//	  "filename": "sample.exe",                     // optional
//	  "structures": [
//	    {
//	      "name": "cls_0x401000",
//	      "demangledName": "ns::Widget",            // optional
//	      "size": 12,
//	      "members": [ { "offset": 8, "size": 4, "type": "int", "name": "count" } ],
//	      "methods": [ { "address": "0x401000", "kind": "ctor" },
//	                   { "address": 4198432, "kind": "virtual", "vtableSlot": 0 } ],
//	      "vtables": [ { "base": "0x40a000", "slots": [ "0x401020", null, "thunk" ] } ],
//	      "bases":   [ { "name": "cls_0x400f00", "offset": 0, "virtual": false } ]
//	    }
//	  ],
//	  "inheritance": [ { "derived": "B", "base": "A", "offset": 0 } ]   // optional
//	}
//
// "structures" may also be an object keyed by class name; document order is
// preserved either way.
//
// Optional scalars are pointers so that an absent field stays distinguishable
// from a present but empty one.
package descriptor
