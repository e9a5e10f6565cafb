/*Package artimel partitions a word-aligned articulatory speech corpus into
disjoint test/validation/training shards, so that every distinct word's
occurrences are distributed across the subsets according to precomputed
per-word quotas.

The partitioner streams large serialized corpus shards one at a time,
routes every row to a subset, and flushes fixed-size output shards as the
in-memory buffers fill. Quota state is checkpointed on a fixed cadence and
before a low-disk-space abort, so an interrupted run can resume by skipping
the shards it already processed.

Shard directories may live on local disk or in S3; see internal/pkg/artfs.
Training of the forward model lives in the forward subpackage.
*/
package artimel
