/*

Package model provides hyper-parameters shared by rating models.

The FunkSVD model lives in the funksvd subpackage, while the baseline
predictors and clamping functions it composes live in baseline and clamp.

*/
package model
