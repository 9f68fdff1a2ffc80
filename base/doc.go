/*

Package base provides base data structures and functions for gorse.

The base data structures and functions include:

* Parallel Scheduler

* Hyper-parameters Management

* Random Generator

* Similarity Metrics
/*

Package base provides base data structures and functions for funksvd.

The base data structures and functions include:

* Identifier Index

* Delimited Text Reading

*/
package base
